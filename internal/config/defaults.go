package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/studykit/data/db/documents.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/studykit/data/indices/content"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/studykit/data/uploads"
	}
	if cfg.Ingest.MaxArchiveEntries == 0 {
		cfg.Ingest.MaxArchiveEntries = 100
	}
	if cfg.Ingest.ArchiveTimeoutMinutes == 0 {
		cfg.Ingest.ArchiveTimeoutMinutes = 30
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Inbox.Extensions == nil {
		cfg.Inbox.Extensions = []string{".pdf", ".doc", ".docx", ".ppt", ".pptx", ".txt", ".rtf", ".zip"}
	}
}
