package executor

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/store"
)

// buildResult converts one classification outcome into a result row.
func buildResult(runID, recordID string, v classifier.Verdict, usage classifier.Usage, err error, now time.Time) store.Result {
	r := store.Result{
		RunID:       runID,
		RecordID:    recordID,
		ProcessedAt: now,
	}

	if data, mErr := json.Marshal(usage); mErr == nil {
		u := string(data)
		r.UsageJSON = &u
	}

	if err != nil {
		msg := err.Error()
		category := string(classifier.CategoryOf(err))
		r.ErrorOccurred = true
		r.LastErrorMessage = &msg
		r.ErrorCategory = &category
		return r
	}

	if v.Label == "" {
		v.Label = strconv.FormatBool(v.Detected)
	}
	r.Label = v.Label

	data, mErr := json.Marshal(v)
	if mErr != nil {
		msg := "encode verdict: " + mErr.Error()
		category := string(classifier.Permanent)
		r.Label = ""
		r.ErrorOccurred = true
		r.LastErrorMessage = &msg
		r.ErrorCategory = &category
		return r
	}
	verdict := string(data)
	r.VerdictJSON = &verdict
	return r
}
