// Package config handles configuration loading for ssh-blog.
//
// # Configuration File
//
// Location (first match wins):
//
//  1. Path from SSHBLOG_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/ssh-blog/config.yaml
//  3. ~/.config/ssh-blog/config.yaml
//
// When the file does not exist, [Default] is used. Files ending in .toml are
// decoded as TOML; everything else is YAML. Keys absent from the file keep
// their default values.
//
// # Example
//
//	database:
//	  driver: "sqlite"          # or "sqlite3" for the cgo driver
//	  path: "/var/lib/ssh-blog/blog.db"
//
//	auth:
//	  trust_remote_session: true
//	  username_fallback: true
//	  registration: "auto"      # auto | prompt | allow | deny
//	  command_timeout: "5s"
//	  dev_mode: false
//
//	logging:
//	  level: "warn"
//	  format: "text"
//
// # Environment
//
// ${VAR_NAME} references inside the file are expanded before parsing.
// After parsing, SSHBLOG_* variables override individual keys:
//
//	SSHBLOG_DATABASE_DRIVER         SSHBLOG_AUTH_REGISTRATION
//	SSHBLOG_DATABASE_PATH           SSHBLOG_AUTH_COMMAND_TIMEOUT
//	SSHBLOG_AUTH_TRUST_REMOTE_SESSION SSHBLOG_AUTH_DEV_MODE
//	SSHBLOG_AUTH_USERNAME_FALLBACK  SSHBLOG_LOG_LEVEL
//	SSHBLOG_LOG_FORMAT
//
// # Registration policy
//
// "auto" prompts when stdin is a terminal and denies otherwise, so a
// non-interactive session never blocks waiting for an answer.
package config
