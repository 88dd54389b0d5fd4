package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RefreshInput is the input for the dataset refresh workflow.
type RefreshInput struct {
	Source     string // label recorded on the snapshot, e.g. "overpass"
	MirrorToDB bool   // also upsert into postgres
}

// RefreshResult reports what the refresh produced.
type RefreshResult struct {
	NodeCount int
	TileCount int
}

// RefreshWorkflow downloads the node set, writes a new snapshot, and
// announces it. When the database mirror fails after the snapshot was
// already written, the previous snapshot is restored so file and
// database stay consistent (saga compensation).
func RefreshWorkflow(ctx workflow.Context, input RefreshInput) (*RefreshResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting dataset refresh", "source", input.Source)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Download the current node set
	var download DownloadResult
	if err := workflow.ExecuteActivity(ctx, "DownloadNodes").Get(ctx, &download); err != nil {
		return nil, err
	}
	logger.Info("Download complete", "nodes", download.NodeCount)

	// Step 2: Write the snapshot (backs up the previous one first)
	var snapshot SnapshotResult
	if err := workflow.ExecuteActivity(ctx, "WriteSnapshot", download).Get(ctx, &snapshot); err != nil {
		return nil, err
	}

	// Step 3: Mirror into the database
	if input.MirrorToDB {
		if err := workflow.ExecuteActivity(ctx, "UpsertDatabase", download).Get(ctx, nil); err != nil {
			logger.Warn("database mirror failed, restoring previous snapshot", "error", err)
			// Compensate: roll the file snapshot back
			_ = workflow.ExecuteActivity(ctx, "RestoreSnapshot", snapshot.BackupDir).Get(ctx, nil)
			return nil, err
		}
	}

	// Step 4: Announce the new snapshot so serving caches invalidate.
	// Not fatal: a lost announcement only delays invalidation.
	if err := workflow.ExecuteActivity(ctx, "AnnounceRefresh", snapshot).Get(ctx, nil); err != nil {
		logger.Warn("refresh announcement failed", "error", err)
	}

	logger.Info("Dataset refresh complete",
		"nodes", snapshot.NodeCount, "tiles", snapshot.TileCount)

	return &RefreshResult{NodeCount: snapshot.NodeCount, TileCount: snapshot.TileCount}, nil
}
