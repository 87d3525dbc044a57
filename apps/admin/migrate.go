package main

import "github.com/homer1989/lehrerdb-v4/storage/database"

func (cli *commandLine) migrate() error {
	if err := database.Migrate(cli.db.DB); err != nil {
		return err
	}
	logger.Println("migrations applied")
	return nil
}
