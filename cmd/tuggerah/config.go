package main

type Config struct {
	Action     string `usage:"list | get | put | delete | search | compact | stats | backup | restore"`
	Engine     string `usage:"storage engine: indexed | file"`
	Dir        string `usage:"data directory"`
	ID         string `usage:"entry id for get, put and delete (put generates one if empty)"`
	Title      string `usage:"entry title for put"`
	Username   string `usage:"entry username for put"`
	Password   string `usage:"entry password for put"`
	URL        string `usage:"entry url for put"`
	Note       string `usage:"entry note for put"`
	Query      string `usage:"title substring for search"`
	File       string `usage:"backup file for backup and restore, compressed if .zst or .br"`
	LogDir     string `usage:"directory for log files, logs only to stdout if empty"`
	Verbose    bool   `usage:"verbose logging"`
	ShowConfig bool   `usage:"print config"`
}

func Default() Config {
	return Config{
		Action: "list",
		Engine: "indexed",
		Dir:    "data",
	}
}
