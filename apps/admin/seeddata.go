package main

import (
	"context"

	"github.com/homer1989/lehrerdb-v4/core/grading"
)

// seedData installs the default grade key when the grade_keys table is empty.
func (cli *commandLine) seedData() error {
	ctx := context.Background()

	keys, err := cli.gradingSvc.QueryGradeKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		logger.Printf("grade keys already present (%d), nothing to seed\n", len(keys))
		return nil
	}

	nk := grading.DefaultGradeKey()
	if err = nk.Validate(cli.gradingSvc); err != nil {
		return err
	}
	key, err := cli.gradingSvc.CreateGradeKey(ctx, nk)
	if err != nil {
		return err
	}
	logger.Printf("seeded default grade key %q (id=%d)\n", key.Name, key.ID)
	return nil
}
