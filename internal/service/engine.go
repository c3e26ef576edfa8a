package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"clanelo/internal/lock"
	"clanelo/internal/repository"
	"clanelo/internal/worker"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// engineLockKey is held by every ledger mutation
const engineLockKey = "clanelo:lock:engine"

// RatingPublisher receives global ratings after a mutation commits
type RatingPublisher interface {
	Submit(task worker.RatingSyncTask) error
}

// Options tune the engine
type Options struct {
	AutoRecalculate bool
	BatchSize       int
}

// Engine records, edits, deletes and replays ledger entries. All mutations
// are serialized by the locker and run inside one store transaction.
type Engine struct {
	ledger          repository.Ledger
	locker          lock.Locker
	publisher       RatingPublisher
	validate        *validator.Validate
	autoRecalculate bool
	batchSize       int
	now             func() time.Time
}

// NewEngine creates a rating engine. publisher may be nil.
func NewEngine(ledger repository.Ledger, locker lock.Locker, publisher RatingPublisher, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Engine{
		ledger:          ledger,
		locker:          locker,
		publisher:       publisher,
		validate:        validator.New(),
		autoRecalculate: opts.AutoRecalculate,
		batchSize:       opts.BatchSize,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// touched collects the players whose global aggregate a mutation rewrote
type touched map[uint]struct{}

func (t touched) add(ids ...uint) {
	for _, id := range ids {
		t[id] = struct{}{}
	}
}

// mutate runs fn under the engine lock inside a single transaction, then
// projects the touched players' ratings once the transaction has committed
func (e *Engine) mutate(ctx context.Context, op string, fn func(tx repository.Ledger, t touched) error) error {
	unlock, err := e.locker.Lock(ctx, engineLockKey)
	if err != nil {
		return err
	}
	defer unlock()

	t := make(touched)
	start := time.Now()
	err = e.ledger.WithTx(ctx, func(tx repository.Ledger) error {
		return fn(tx, t)
	})
	if err != nil {
		err = storeErr(op, err)
		log.Warn().Err(err).Str("op", op).Msg("mutation rolled back")
		return err
	}

	log.Debug().Str("op", op).Int("players", len(t)).Dur("took", time.Since(start)).Msg("mutation committed")
	e.publish(ctx, t)
	return nil
}

// publish hands the committed ratings to the projection workers
func (e *Engine) publish(ctx context.Context, t touched) {
	if e.publisher == nil || len(t) == 0 {
		return
	}

	ids := make([]uint, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		p, err := e.ledger.GetPlayer(ctx, id)
		if err != nil {
			log.Error().Err(err).Uint("player_id", id).Msg("failed to load player for projection")
			continue
		}
		// the pool logs backpressure itself
		_ = e.publisher.Submit(worker.RatingSyncTask{Name: p.Name, Rating: p.Rating})
	}
}

func (e *Engine) validateStruct(v any) error {
	if err := e.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
