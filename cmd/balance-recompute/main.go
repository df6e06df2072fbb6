package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	accountCode := flag.String("account", "", "Required: account code. A group code recomputes every descendant leaf.")
	flag.Parse()

	if strings.TrimSpace(*accountCode) == "" {
		fmt.Fprintln(os.Stderr, "--account is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	ctx := utils.SetCorrelationIdInContext(context.Background(), uuid.NewString())
	drifts, err := workflow.RecomputeAccountBalance(ctx, logger, strings.TrimSpace(*accountCode))
	if err != nil {
		fmt.Fprintf(os.Stderr, "recompute failed: %v\n", err)
		os.Exit(1)
	}

	if len(drifts) == 0 {
		fmt.Println("no drift detected")
		return
	}
	for _, d := range drifts {
		fmt.Printf("account=%s cached=%s recomputed=%s\n", d.AccountCode, d.Cached, d.Recomputed)
	}
	fmt.Printf("%d accounts reconciled\n", len(drifts))
}
