package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"freet/pkg/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCascadeExecutesEveryStep(t *testing.T) {
	var ran []string
	steps := []cascadeStep{
		{"likes", func(ctx context.Context, reqID, freetID int64) error {
			ran = append(ran, "likes")
			return nil
		}},
		{"refreets", func(ctx context.Context, reqID, freetID int64) error {
			ran = append(ran, "refreets")
			return nil
		}},
		{"circles", func(ctx context.Context, reqID, freetID int64) error {
			ran = append(ran, "circles")
			return nil
		}},
	}
	msg := model.Message{ReqID: 1, FreetID: 42}
	failed := runCascade(context.Background(), discardLogger(), "local", msg, steps)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"likes", "refreets", "circles"}, ran)
}

func TestRunCascadeContinuesPastFailures(t *testing.T) {
	var ran []string
	steps := []cascadeStep{
		{"likes", func(ctx context.Context, reqID, freetID int64) error {
			ran = append(ran, "likes")
			return errors.New("store unavailable")
		}},
		{"refreets", func(ctx context.Context, reqID, freetID int64) error {
			ran = append(ran, "refreets")
			return nil
		}},
		{"circles", func(ctx context.Context, reqID, freetID int64) error {
			ran = append(ran, "circles")
			return errors.New("store unavailable")
		}},
	}
	msg := model.Message{ReqID: 1, FreetID: 42}
	failed := runCascade(context.Background(), discardLogger(), "local", msg, steps)
	assert.Equal(t, 2, failed)
	// a failed step never aborts the rest
	assert.Equal(t, []string{"likes", "refreets", "circles"}, ran)
}

func TestRunCascadePassesMessageIds(t *testing.T) {
	var gotReqID, gotFreetID int64
	steps := []cascadeStep{
		{"likes", func(ctx context.Context, reqID, freetID int64) error {
			gotReqID, gotFreetID = reqID, freetID
			return nil
		}},
	}
	msg := model.Message{ReqID: 7, FreetID: 99}
	runCascade(context.Background(), discardLogger(), "local", msg, steps)
	assert.Equal(t, int64(7), gotReqID)
	assert.Equal(t, int64(99), gotFreetID)
}
