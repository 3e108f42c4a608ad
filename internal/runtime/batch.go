package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/observability"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/validate"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// BatchItem is one unit of work inside a batch call.
type BatchItem struct {
	// Tool names the registered tool to invoke.
	Tool string
	// Args are the tool's arguments.
	Args map[string]any
	// Label identifies the item in progress output. Defaults to the
	// tool name plus the path argument when present.
	Label string
}

// ProgressFunc receives a progress update after each batch item
// completes. Must not block.
type ProgressFunc func(models.BatchProgress)

// RunBatch executes a sequence of tool calls under one plan-gate and
// round-limit admission. Every item is validated before any item runs;
// a single invalid item rejects the whole batch with nothing executed.
// Execution is strictly sequential in item order, and individual
// failures do not abort the remainder. The batch succeeds as long as at
// least one item does.
func (r *Runtime) RunBatch(ctx context.Context, items []BatchItem, progress ProgressFunc) models.ToolResult {
	callID := uuid.NewString()
	ctx = observability.AddToolCallID(ctx, callID)
	ctx, span := r.tracer.TraceBatch(ctx, "batch", len(items))
	defer span.End()

	if !r.gate.Admits() {
		r.blockMetric("batch", models.BlockPlanGate)
		return r.gate.RejectEnvelope("batch")
	}

	if len(items) == 0 {
		return models.Fail("batch contains no items", "empty batch")
	}
	if max := r.cfg.Limits.MaxBatchSize; len(items) > max {
		return models.Fail(
			fmt.Sprintf("batch of %d items exceeds the limit of %d", len(items), max),
			"batch too large")
	}

	// All-or-nothing validation: the model either gets a clean run or a
	// precise list of what to fix, never a half-applied batch.
	if verdict := r.validateBatch(items); !verdict.Valid {
		r.blockMetric("batch", models.BlockValidation)
		return verdict.ToEnvelope()
	}

	if r.metrics != nil {
		r.metrics.BatchItems.WithLabelValues("batch").Observe(float64(len(items)))
	}

	start := time.Now()
	report := models.BatchReport{Total: len(items)}
	for i, item := range items {
		label := item.Label
		if label == "" {
			label = defaultLabel(item)
		}

		res := r.RunTool(ctx, item.Tool, item.Args)

		entry := models.BatchEntry{
			Label:   label,
			Success: res.Success,
			Message: res.Message,
			Error:   res.Error,
		}
		report.Results = append(report.Results, entry)
		if res.Success {
			report.Succeeded++
		} else {
			report.Failed++
			r.logger.Warn(ctx, "batch item failed",
				"item", label, "step", i+1, "total", len(items), "error", res.Error)
		}

		if progress != nil {
			progress(models.BatchProgress{Step: i + 1, Total: len(items), Label: label})
		}
	}

	message := fmt.Sprintf("Batch complete: %d/%d succeeded", report.Succeeded, report.Total)
	var result models.ToolResult
	if report.Failed < report.Total {
		result = models.Ok(message, report)
	} else {
		result = models.Fail(message, "all batch items failed")
		if data, err := json.Marshal(report); err == nil {
			result.Data = data
		}
	}
	if result.Metadata == nil {
		result.Metadata = &models.ResultMetadata{Timestamp: time.Now()}
	}
	result.Metadata.ExecutionTime = time.Since(start)
	return result
}

// validateBatch runs schema and domain validation over every item
// before anything executes. Unknown tools fail validation here rather
// than mid-batch.
func (r *Runtime) validateBatch(items []BatchItem) validate.Result {
	results := make([]validate.Result, 0, len(items))
	for i, item := range items {
		tool, found := r.registry.Get(item.Tool)
		if !found {
			results = append(results, validate.Result{
				Errors: []string{fmt.Sprintf("item %d: unknown tool %q", i+1, item.Tool)},
			})
			continue
		}
		verdict := r.validateCall(tool, item.Args)
		for j, msg := range verdict.Errors {
			verdict.Errors[j] = fmt.Sprintf("item %d (%s): %s", i+1, item.Tool, msg)
		}
		results = append(results, verdict)
	}
	return validate.Merge(results...)
}

func defaultLabel(item BatchItem) string {
	if path, ok := item.Args["path"].(string); ok && path != "" {
		return item.Tool + " " + path
	}
	return item.Tool
}
