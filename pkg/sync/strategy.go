package sync

import (
	"context"

	"github.com/aretw0/fieldbook/pkg/core"
)

// pushKind sends every unsynced record of user in kind, in insertion order.
// The pending set is collected before the first push so acknowledgments never
// write into an open scan.
func (e *Engine) pushKind(ctx context.Context, user core.User, kind core.Kind, res *Result) error {
	repo, err := e.repository(kind, user.Username)
	if err != nil {
		return err
	}
	pending, err := core.Collect(repo.ToBeSynced(context.WithoutCancel(ctx)))
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		e.logger.Debug("pushing records", "kind", kind, "count", len(pending))
	}
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if err := e.pushOne(ctx, repo, rec, res); err != nil {
			return err
		}
	}
	return nil
}

// pushOne sends rec and flags it synced once acknowledged. A remote failure
// is recorded and the record stays pending; only a local storage fault is
// returned. An attempt already started completes even if ctx is cancelled.
func (e *Engine) pushOne(ctx context.Context, repo *core.Repository, rec core.Record, res *Result) error {
	opCtx := context.WithoutCancel(ctx)
	kind := repo.Kind()

	ack, err := e.remote.Push(opCtx, kind, rec)
	if err != nil {
		e.logger.Warn("push failed", "kind", kind, "id", rec.ID, "error", err)
		res.fail(kind, rec.ID, OpPush, core.SyncFault("push", kind, rec.ID, err))
		e.metrics.observeRecord(kind, OpPush, outcomeFailed)
		return nil
	}
	if ack.Revision != "" {
		err = repo.Acknowledge(opCtx, rec.ID, ack.Revision)
	} else {
		err = repo.MarkSynced(opCtx, rec.ID)
	}
	if err != nil {
		return err
	}
	res.succeed(kind, rec.ID)
	e.metrics.observeRecord(kind, OpPush, outcomeSucceeded)
	return nil
}

// pullKind fetches remote records of kind changed since the stored marker
// and merges them. The marker only advances after a page applied cleanly.
func (e *Engine) pullKind(ctx context.Context, user core.User, kind core.Kind, res *Result) error {
	opCtx := context.WithoutCancel(ctx)
	since, err := e.markers.load(opCtx, user.Username, kind)
	if err != nil {
		return err
	}

	page, err := e.remote.PullAll(opCtx, kind, since)
	if err != nil {
		e.logger.Warn("pull failed", "kind", kind, "since", since, "error", err)
		res.fail(kind, "", OpPull, core.SyncFault("pull", kind, "", err))
		e.metrics.observeRecord(kind, OpPull, outcomeFailed)
		return nil
	}

	failed := len(res.Failed)
	for _, remote := range page.Records {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if err := e.apply(ctx, user, kind, remote, res); err != nil {
			return err
		}
	}

	if page.Marker != "" && page.Marker != since && len(res.Failed) == failed {
		if err := e.markers.save(opCtx, user.Username, kind, page.Marker); err != nil {
			return err
		}
	}
	return nil
}

// syncOne pushes the local copy of id when it has pending changes, otherwise
// pulls the server copy.
func (e *Engine) syncOne(ctx context.Context, user core.User, kind core.Kind, id string, res *Result) error {
	repo, err := e.repository(kind, user.Username)
	if err != nil {
		return err
	}
	local, err := repo.Get(context.WithoutCancel(ctx), id)
	switch {
	case err == nil && !local.Synced:
		return e.pushOne(ctx, repo, local, res)
	case err == nil, core.IsNotFound(err):
	default:
		return err
	}

	remote, err := e.remote.PullOne(context.WithoutCancel(ctx), kind, id)
	if err != nil {
		e.logger.Warn("pull failed", "kind", kind, "id", id, "error", err)
		res.fail(kind, id, OpPull, core.SyncFault("pull", kind, id, err))
		e.metrics.observeRecord(kind, OpPull, outcomeFailed)
		return nil
	}
	if remote.ID == "" {
		remote.ID = id
	}
	return e.apply(ctx, user, kind, remote, res)
}

// apply merges one remote record into the local store. Records the device
// already holds at the same or a later revision are skipped; newer remote
// copies of records with pending local changes are reported as conflicts and
// left untouched. Records of the current user created here get the user's
// organisation when the server sent none.
func (e *Engine) apply(ctx context.Context, user core.User, kind core.Kind, remote core.Record, res *Result) error {
	opCtx := context.WithoutCancel(ctx)
	if remote.ID == "" {
		res.fail(kind, "", OpPull, core.Validation("apply", kind, "", "remote record has no id"))
		e.metrics.observeRecord(kind, OpPull, outcomeFailed)
		return nil
	}
	owner := remote.Owner
	if owner == "" {
		if s, ok := remote.Fields[core.FieldOwner].(string); ok && s != "" {
			owner = s
		} else {
			owner = user.Username
		}
	}
	var opts []core.RepositoryOption
	if owner == user.Username {
		opts = append(opts, core.WithOrganisation(e.organisationOf(user)))
	}
	repo, err := e.repository(kind, owner, opts...)
	if err != nil {
		return err
	}

	local, err := repo.Get(opCtx, remote.ID)
	switch {
	case err == nil:
		if !core.Newer(remote, local) {
			e.metrics.observeRecord(kind, OpPull, outcomeSkipped)
			return nil
		}
		if !local.Synced {
			e.logger.Warn("pull conflict", "kind", kind, "id", remote.ID, "local", local.Revision(), "remote", remote.Revision())
			res.conflict(kind, remote.ID)
			e.metrics.observeRecord(kind, OpPull, outcomeConflict)
			return nil
		}
	case core.IsNotFound(err):
	default:
		return err
	}

	if _, err := repo.Create(opCtx, core.Record{ID: remote.ID, Fields: remote.Fields}); err != nil {
		if core.IsValidation(err) {
			res.fail(kind, remote.ID, OpPull, err)
			e.metrics.observeRecord(kind, OpPull, outcomeFailed)
			return nil
		}
		return err
	}
	if rev := remote.Revision(); rev != "" {
		err = repo.Acknowledge(opCtx, remote.ID, rev)
	} else {
		err = repo.MarkSynced(opCtx, remote.ID)
	}
	if err != nil {
		return err
	}
	res.pulled(kind, remote.ID)
	e.metrics.observeRecord(kind, OpPull, outcomePulled)
	return nil
}

func (e *Engine) organisationOf(user core.User) string {
	if user.Organisation != "" {
		return user.Organisation
	}
	return e.organisation
}
