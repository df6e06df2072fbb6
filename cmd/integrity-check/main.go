package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	itemID := flag.Int("item-id", 0, "Optional: restrict inventory checks to one item id")
	accounts := flag.Bool("accounts", true, "Check the account tree")
	inventory := flag.Bool("inventory", true, "Check inventory layer linkage")
	repair := flag.Bool("repair", false, "Repair inventory layer link findings (requires --item-id)")
	operator := flag.String("operator", "", "Operator name recorded on repair runs")
	flag.Parse()

	if *repair && *itemID <= 0 {
		fmt.Fprintln(os.Stderr, "--repair requires --item-id")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	ctx := utils.SetCorrelationIdInContext(context.Background(), uuid.NewString())
	if *operator != "" {
		ctx = utils.SetUserNameInContext(ctx, *operator)
	}

	total := 0
	if *accounts {
		findings, err := workflow.CheckAccountTreeIntegrity(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "account tree check: %v\n", err)
			os.Exit(1)
		}
		for _, f := range findings {
			fmt.Printf("%s account=%d %s\n", f.Kind, f.AccountId, f.Detail)
		}
		total += len(findings)
	}
	if *inventory {
		var itemFilter *int
		if *itemID > 0 {
			itemFilter = itemID
		}
		findings, err := workflow.CheckInventoryIntegrity(ctx, itemFilter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "inventory check: %v\n", err)
			os.Exit(1)
		}
		for _, f := range findings {
			fmt.Printf("%s item=%d layer=%d transaction=%d %s\n",
				f.Kind, f.ItemId, f.LayerId, f.TransactionId, f.Detail)
		}
		total += len(findings)
	}

	if *repair {
		run, err := workflow.RepairLayerLinks(ctx, logger, *itemID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "repair failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("repair run %d fixed %d findings\n", run.ID, run.FindingsFixed)
		return
	}

	if total > 0 {
		fmt.Printf("%d findings\n", total)
		os.Exit(2)
	}
	fmt.Println("no integrity findings")
}
