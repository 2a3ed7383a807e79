// Command admincli provides operator subcommands for the marketplace
// transactional core: forcing a supply-control recompute, sweeping
// expired corrections, and replaying a previously-ingested Stripe event
// through the outbox. Grounded on the teacher's cmd/slcli/main.go
// subcommand-switch style (os.Args[1] dispatch, no flag subpackage),
// exit codes 0 (success), 1 (usage or any other error) and 2 (an
// invariant violation, i.e. a service error with an HX1xx code).
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/correction"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/memory"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage/postgres"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/supply"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/analytics"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/config"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/platform/database"
)

type stores interface {
	storage.TxRunner
	storage.SupplyStore
	storage.NotificationStore
	storage.CorrectionStore
	storage.StripeEventStore
	storage.OutboxStore
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("admincli", cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	st, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to storage: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "recalculate-capacity":
		exit(cmdRecalculateCapacity(ctx, st, logger))
	case "expire-corrections":
		exit(cmdExpireCorrections(ctx, st, logger))
	case "ingest-replay":
		exit(cmdIngestReplay(ctx, st, logger, args))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	if cfg.DatabaseURL == "" {
		return memory.New(), func() {}, nil
	}
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.New(db), func() { db.Close() }, nil
}

func exit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if se := apperrors.GetServiceError(err); se != nil && strings.HasPrefix(string(se.Code), "HX") {
		os.Exit(2)
	}
	os.Exit(1)
}

func cmdRecalculateCapacity(ctx context.Context, st stores, log *logging.Logger) error {
	svc := supply.New(st, st, st, log)
	now := time.Now().UTC()
	if err := svc.RecomputeAll(ctx, now); err != nil {
		return fmt.Errorf("recompute capacity: %w", err)
	}
	fmt.Println("supply capacity recomputed")
	return nil
}

func cmdExpireCorrections(ctx context.Context, st stores, log *logging.Logger) error {
	svc := correction.New(st, st, analytics.Noop{}, log)
	now := time.Now().UTC()
	n, err := svc.ExpireDue(ctx, now)
	if err != nil {
		return fmt.Errorf("expire corrections: %w", err)
	}
	fmt.Printf("expired %d corrections\n", n)
	return nil
}

// cmdIngestReplay re-emits the stored Stripe event identified by
// event_id onto the outbox, for replaying a delivery that was ingested
// but whose downstream effect never completed (e.g. after fixing a bug
// in an effect worker).
func cmdIngestReplay(ctx context.Context, st stores, log *logging.Logger, args []string) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("usage: admincli ingest-replay <event_id>")
	}
	eventID := args[0]

	writer := outbox.NewWriter(st)
	err := st.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		ev, err := st.Get(ctx, q, eventID)
		if err != nil {
			return fmt.Errorf("load stripe event %s: %w", eventID, err)
		}
		_, err = writer.Emit(ctx, q, domoutbox.EventStripeEventReceived, "stripe_event", ev.ExternalID, 1, domoutbox.QueueCriticalPayments, ev)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("replayed stripe event %s\n", eventID)
	return nil
}

func printUsage() {
	fmt.Println(`admincli - marketplace transactional core operator commands

Usage:
  admincli <command> [arguments]

Commands:
  recalculate-capacity           Force a supply-control decay/waitlist/invitation sweep
  expire-corrections             Reverse every correction past its expiry
  ingest-replay <event_id>       Re-emit a stored Stripe event onto the outbox
  help                           Show this message`)
}
