package main

import (
	"context"
	"fmt"

	"github.com/trezcool/ushauri/core/rostersync"
)

func (cli *commandLine) sync(ctx context.Context, req rostersync.Request) error {
	resp, err := rostersync.Trigger(ctx, cli.syncSvc, cli.validate, req, cliTriggeredBy)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "sync run %s: %d users processed, %d created, %d updated\n",
		resp.SyncLogID, resp.UsersProcessed, resp.UsersCreated, resp.UsersUpdated)
	for _, e := range resp.Errors {
		if e.ExternalID != "" {
			fmt.Fprintf(cli.out, "  %s %s: %s\n", e.EntityType, e.ExternalID, e.Message)
		} else {
			fmt.Fprintf(cli.out, "  %s: %s\n", e.EntityType, e.Message)
		}
	}
	if !resp.Success {
		return errSyncFailed
	}
	return nil
}
