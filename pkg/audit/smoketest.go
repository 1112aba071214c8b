package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mosaicops/cmsgate/pkg/trail"
	"github.com/mosaicops/cmsgate/pkg/upstream"
)

// itemIDFields are the response fields that may carry a created item's
// identifier, checked in order; the generations name it differently.
var itemIDFields = []string{"_id", "id", "itemId"}

// runSmokeTest rehearses the write path against one target collection:
// create a draft item, update it, optionally publish, then delete it.
// Publish failures are non-fatal; the run is OK only when creation,
// update and deletion all succeeded.
func (e *Engine) runSmokeTest(ctx context.Context, discovered []upstream.Collection, publish bool) *SmokeTestRun {
	run := &SmokeTestRun{}

	target := e.pickSmokeTarget(discovered)
	if target == "" {
		run.Created = &StageResult{OK: false, Message: "no smoke-test target collection available"}
		e.countSmokeTest(run)
		return run
	}
	run.CollectionID = target

	now := time.Now().UTC()
	run.Slug = fmt.Sprintf("gateway-smoke-%d", now.UnixMilli())
	run.Name = fmt.Sprintf("Gateway Smoke %s", now.Format("20060102-150405"))

	// Create a draft, unarchived item.
	res, err := e.writer.WriteItem(ctx, target, http.MethodPost, "", map[string]any{
		"slug":                run.Slug,
		"name":                run.Name,
		upstream.FlagDraft:    true,
		upstream.FlagArchived: false,
	})
	e.recordStage(ctx, run, "create", target, "", err)
	if err != nil {
		run.Created = failedStage(err)
		e.countSmokeTest(run)
		return run
	}
	run.Created = &StageResult{OK: true}
	run.Generation = res.Generation
	run.UsedAlternateShape = res.UsedAlternateShape

	itemID := extractItemID(res.Body)
	if itemID == "" {
		// Without an identifier the item can be neither updated nor
		// deleted; surface the raw response for diagnosis.
		run.Created = &StageResult{OK: false, Message: "created item response carried no recognizable identifier"}
		run.CreationResponse = res.Body
		e.countSmokeTest(run)
		return run
	}

	// Update: name changes, flags stay.
	_, err = e.writer.WriteItem(ctx, target, http.MethodPatch, itemID, map[string]any{
		"slug":                run.Slug,
		"name":                run.Name + " (updated)",
		upstream.FlagDraft:    true,
		upstream.FlagArchived: false,
	})
	e.recordStage(ctx, run, "update", target, itemID, err)
	if err != nil {
		run.Updated = failedStage(err)
		run.OrphanedItemID = itemID
		e.countSmokeTest(run)
		return run
	}
	run.Updated = &StageResult{OK: true}

	if publish {
		_, err = e.publisher.Publish(ctx, target, []string{itemID})
		e.recordStage(ctx, run, "publish", target, itemID, err)
		if err != nil {
			run.Published = failedStage(err)
		} else {
			run.Published = &StageResult{OK: true}
		}
	}

	err = e.writer.DeleteItem(ctx, target, itemID)
	e.recordStage(ctx, run, "delete", target, itemID, err)
	if err != nil {
		run.Deleted = failedStage(err)
		run.OrphanedItemID = itemID
		e.countSmokeTest(run)
		return run
	}
	run.Deleted = &StageResult{OK: true}

	run.OK = run.Created.OK && run.Updated.OK && run.Deleted.OK
	e.countSmokeTest(run)
	return run
}

// pickSmokeTarget resolves the target collection: the first configured
// preference present among the run's collections, then the first
// collection of the run.
func (e *Engine) pickSmokeTarget(collections []upstream.Collection) string {
	present := make(map[string]bool, len(collections))
	for _, col := range collections {
		present[col.ID] = true
	}
	for _, preferred := range e.cfg.SmokeTargets {
		if present[preferred] {
			return preferred
		}
	}
	if len(collections) > 0 {
		return collections[0].ID
	}
	return ""
}

// extractItemID pulls the created item's identifier from the response,
// trying the candidate field names in order.
func extractItemID(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	for _, field := range itemIDFields {
		if id, ok := m[field].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// failedStage converts an error into a stage record, keeping the upstream
// status when one exists.
func failedStage(err error) *StageResult {
	stage := &StageResult{Message: err.Error()}
	var ue *upstream.UpstreamError
	if errors.As(err, &ue) {
		stage.Status = ue.Status
		stage.Message = ue.Message
	}
	return stage
}

// recordStage writes one smoke-test stage to the trail.
func (e *Engine) recordStage(ctx context.Context, run *SmokeTestRun, stage, collectionID, itemID string, err error) {
	event := trail.Event{
		Action:       trail.ActionSmokeStage,
		CollectionID: collectionID,
		ItemID:       itemID,
		Stage:        stage,
		Success:      err == nil,
		Generation:   string(run.Generation),
	}
	if err != nil {
		event.Message = err.Error()
	}
	if recordErr := e.trail.Record(ctx, event); recordErr != nil {
		e.logger.WithError(recordErr).Warn("failed to record smoke-test stage in trail")
	}
}

func (e *Engine) countSmokeTest(run *SmokeTestRun) {
	if e.metrics == nil {
		return
	}
	status := "failed"
	if run.OK {
		status = "ok"
	}
	e.metrics.SmokeTestsTotal.WithLabelValues(status).Inc()
}
