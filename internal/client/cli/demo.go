package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	clientsync "github.com/iudanet/medsync/internal/client/sync"
	"github.com/iudanet/medsync/internal/config"
	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/repository"
	serversync "github.com/iudanet/medsync/internal/server/sync"
	"github.com/iudanet/medsync/internal/transport"
	"github.com/iudanet/medsync/internal/transport/memory"
)

const demoStepTimeout = 5 * time.Second

// стартовый список, если --bootstrap не задан
func demoRecords() []models.Record {
	return []models.Record{
		{
			ID:             "aspirin",
			Name:           "Aspirin",
			Dosage:         "100mg",
			Frequency:      "daily",
			ScheduledTimes: []string{"08:00"},
			Instructions:   "After breakfast",
		},
		{
			ID:             "metformin",
			Name:           "Metformin",
			Dosage:         "500mg",
			Frequency:      "twice daily",
			ScheduledTimes: []string{"09:00", "21:00"},
		},
	}
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	var bootstrap string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run both nodes in one process over an in-memory transport",
		Long: `Start an authoritative node and a replica connected by an in-memory
transport and walk through the sync scenarios: the replica mirrors the list,
a record added on the authoritative node shows up on the replica, a TAKE
command from the replica comes back as a new snapshot, and a command sent
while the authoritative node is unreachable is dropped without a send attempt.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(commandContext(cmd), rootOpts, cmd, bootstrap)
		},
	}

	cmd.Flags().StringVar(&bootstrap, "bootstrap", "", "YAML file with the initial record list")

	return cmd
}

func runDemo(ctx context.Context, opts *RootOptions, cmd *cobra.Command, bootstrap string) error {
	seed := demoRecords()
	if bootstrap != "" {
		records, err := config.LoadBootstrap(bootstrap)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load bootstrap records", err)
		}
		seed = records
	}

	logCfg := config.LogConfig{Level: "warn", Format: "text"}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logger := logCfg.NewLogger(cmd.ErrOrStderr())
	out := outputFor(cmd)

	network := memory.NewNetwork(transport.Peer{ID: "authoritative", Address: "memory"})

	authRepo, err := repository.New(seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid bootstrap records", err)
	}
	replicaRepo, err := repository.New(nil)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to create replica repository", err)
	}

	authSvc := serversync.NewService(authRepo, network, network, nil, nil, logger.With("node", "authoritative"))
	if err := authSvc.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start authoritative node", err)
	}
	defer authSvc.Stop()

	replicaSvc := clientsync.NewService(replicaRepo, network, network, nil, logger.With("node", "replica"))
	if err := replicaSvc.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start replica", err)
	}
	defer replicaSvc.Stop()

	// 1. Реплика получает начальный снапшот
	mirrored, err := waitForRecords(ctx, replicaRepo, func(records []models.Record) bool {
		return len(records) == len(seed)
	})
	if err != nil {
		return WrapExitError(ExitFailure, "replica did not receive the initial snapshot", err)
	}
	out.Printf("replica mirrored %d record(s)\n", len(mirrored))
	if err := printRecords(out, opts.Format, mirrored); err != nil {
		return err
	}

	// 2. Добавление на авторитетном узле
	added := authRepo.Add(models.Record{
		Name:           "Vitamin D",
		Dosage:         "1000 IU",
		Frequency:      "daily",
		ScheduledTimes: []string{"12:00"},
	})
	out.Printf("authoritative added %q as %s\n", added.Name, added.ID)

	if _, err := waitForRecords(ctx, replicaRepo, hasStatus(added.ID, models.StatusPending)); err != nil {
		return WrapExitError(ExitFailure, "replica did not observe the new record", err)
	}
	out.Printf("replica sees %s as %s\n", added.ID, models.StatusPending)

	// 3. Команда с реплики возвращается снапшотом
	if err := <-replicaSvc.SendCommand(ctx, added.ID, models.ActionTake); err != nil {
		return WrapExitError(ExitFailure, "TAKE command failed", err)
	}
	out.Printf("replica sent %s %s\n", models.ActionTake, added.ID)

	if _, err := waitForRecords(ctx, replicaRepo, hasStatus(added.ID, models.StatusTaken)); err != nil {
		return WrapExitError(ExitFailure, "TAKE was not confirmed by a snapshot", err)
	}
	out.Printf("replica sees %s as %s\n", added.ID, models.StatusTaken)

	// 4. Пир недоступен: команда отбрасывается без попытки отправки
	network.SetReachable(false)
	before := network.SendAttempts()
	err = <-replicaSvc.SendCommand(ctx, added.ID, models.ActionSkip)
	if !errors.Is(err, clientsync.ErrNoReachablePeer) {
		return WrapExitError(ExitFailure, "expected the SKIP command to be dropped", err)
	}
	out.Printf("authoritative unreachable: %s %s dropped (%s), send attempts %d -> %d\n",
		models.ActionSkip, added.ID, ResultNoPeer, before, network.SendAttempts())

	out.Println("final replica state:")
	return printRecords(out, opts.Format, replicaRepo.Current())
}

func hasStatus(id string, status models.RecordStatus) func([]models.Record) bool {
	return func(records []models.Record) bool {
		for _, r := range records {
			if r.ID == id {
				return r.Status == status
			}
		}
		return false
	}
}

// waitForRecords ждет состояния репозитория, удовлетворяющего pred
func waitForRecords(ctx context.Context, repo *repository.Repository, pred func([]models.Record) bool) ([]models.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, demoStepTimeout)
	defer cancel()

	found := make(chan []models.Record, 1)
	sub := repo.Observe(func(records []models.Record) {
		if pred(records) {
			select {
			case found <- records:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	select {
	case records := <-found:
		return records, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for replica state: %w", ctx.Err())
	}
}
