package jobs

import (
	"context"
	"io"
	"log/slog"

	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/nsm"
)

const (
	TreeCheckTask     = "tree_check"
	TreeCheckSchedule = "0 3 * * *"
)

// Tree is the store surface the check needs.
type Tree interface {
	Nodes(ctx context.Context) ([]nsm.Node, error)
	Cleanup(ctx context.Context) (int64, error)
}

// TreeObserver records the tree state after each check.
type TreeObserver interface {
	ObserveTree(table string, nodes int, dense bool)
}

// TreeReport is the outcome of one check.
type TreeReport struct {
	Nodes      int  `json:"nodes"`
	Dense      bool `json:"dense"`
	Renumbered bool `json:"renumbered"`
}

// TreeCheck validates the users tree and closes boundary gaps.
type TreeCheck struct {
	tree     Tree
	observer TreeObserver
	logger   *slog.Logger
}

// NewTreeCheck creates the task. observer may be nil.
func NewTreeCheck(t Tree, observer TreeObserver, l *slog.Logger) *TreeCheck {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TreeCheck{tree: t, observer: observer, logger: l}
}

func (*TreeCheck) Name() string     { return TreeCheckTask }
func (*TreeCheck) Schedule() string { return TreeCheckSchedule }

func (tc *TreeCheck) Handle(ctx context.Context) error {
	_, err := tc.Run(ctx, true)
	return err
}

// Run validates the tree and, when fix is set and the boundaries have
// gaps, renumbers them. A corrupt tree is reported and left alone.
func (tc *TreeCheck) Run(ctx context.Context, fix bool) (TreeReport, error) {
	nodes, err := tc.tree.Nodes(ctx)
	if err != nil {
		return TreeReport{}, err
	}
	if err := nsm.Validate(nodes); err != nil {
		tc.logger.ErrorContext(ctx, "user tree is corrupt", slog.Any("error", err))
		return TreeReport{Nodes: len(nodes)}, err
	}

	report := TreeReport{Nodes: len(nodes), Dense: nsm.Dense(nodes)}
	if !report.Dense && fix {
		rows, err := tc.tree.Cleanup(ctx)
		if err != nil {
			return report, err
		}
		report.Dense, report.Renumbered = true, true
		tc.logger.InfoContext(ctx, "user tree renumbered", slog.Int64("rows", rows))
	}

	if tc.observer != nil {
		tc.observer.ObserveTree(users.Table, report.Nodes, report.Dense)
	}
	tc.logger.DebugContext(ctx, "user tree checked",
		slog.Int("nodes", report.Nodes),
		slog.Bool("dense", report.Dense))
	return report, nil
}
