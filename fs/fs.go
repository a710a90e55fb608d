// Package appfs embeds the files the binaries need at runtime: DB migrations & email templates.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/*
var FS embed.FS

// MigrationsDir is the goose migrations directory inside FS.
const MigrationsDir = "migrations"
