// Package transaction records the operations performed on a document store
// and packages them into a change, or reverts them.
//
// A transaction attaches itself to the store as its recorder, so every
// mutation made through the store while it is open is buffered, including
// the cascaded operations of a structural delete. Only one transaction may
// be open on a store at a time.
//
//	c, err := transaction.Run(store, sel, info, func(tx *transaction.Tx) error {
//	    _, err := tx.Create(operation.NodeData{"type": "paragraph"})
//	    return err
//	})
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/docerr"
	"github.com/dshills/docengine/internal/engine/document"
	"github.com/dshills/docengine/internal/engine/operation"
)

// Tx is an open transaction on a document store.
type Tx struct {
	store   *document.Store
	logger  *slog.Logger
	ops     []operation.Operation
	before  change.Selection
	after   change.Selection
	started time.Time
	closed  bool

	committed *change.Change
}

// Begin opens a transaction on store. It fails with docerr.ErrIllegalState
// if another transaction is already open.
func Begin(store *document.Store, before change.Selection) (*Tx, error) {
	tx := &Tx{
		store:   store,
		logger:  store.Logger(),
		before:  before,
		after:   before,
		started: time.Now(),
	}
	if err := store.Attach(tx); err != nil {
		recordBegin(context.Background(), false)
		return nil, err
	}
	recordBegin(context.Background(), true)
	return tx, nil
}

// Record implements document.Recorder.
func (tx *Tx) Record(op operation.Operation) {
	tx.ops = append(tx.ops, op)
}

// Ops returns a copy of the buffered operations.
func (tx *Tx) Ops() []operation.Operation {
	out := make([]operation.Operation, len(tx.ops))
	copy(out, tx.ops)
	return out
}

// Document returns the store the transaction is bound to.
func (tx *Tx) Document() *document.Store {
	return tx.store
}

// Closed reports whether the transaction was committed or rolled back.
func (tx *Tx) Closed() bool {
	return tx.closed
}

// SetSelection sets the selection recorded as the change's "after".
func (tx *Tx) SetSelection(sel change.Selection) {
	tx.after = sel
}

func (tx *Tx) check() error {
	if tx.closed {
		return docerr.IllegalState("transaction is closed")
	}
	return nil
}

// Apply applies a raw operation.
func (tx *Tx) Apply(op operation.Operation) error {
	if err := tx.check(); err != nil {
		return err
	}
	return tx.store.Apply(op)
}

// Create creates a node.
func (tx *Tx) Create(data operation.NodeData) (operation.Operation, error) {
	if err := tx.check(); err != nil {
		return operation.Operation{}, err
	}
	return tx.store.Create(data)
}

// Set sets a property.
func (tx *Tx) Set(path operation.Path, value any) (operation.Operation, error) {
	if err := tx.check(); err != nil {
		return operation.Operation{}, err
	}
	return tx.store.Set(path, value)
}

// Update applies a diff to a property.
func (tx *Tx) Update(path operation.Path, diff operation.Diff) (operation.Operation, error) {
	if err := tx.check(); err != nil {
		return operation.Operation{}, err
	}
	return tx.store.Update(path, diff)
}

// Delete deletes a node and everything that depends on it.
func (tx *Tx) Delete(id string) ([]operation.Operation, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	return tx.store.Delete(id)
}

// DeleteFromContainer deletes a node shown in a container and moves the
// transaction's selection to where the cursor should land.
func (tx *Tx) DeleteFromContainer(containerID, id string) ([]operation.Operation, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	ops, sel, err := tx.store.DeleteFromContainer(containerID, id)
	if err != nil {
		return ops, err
	}
	tx.after = sel
	return ops, nil
}

// Show shows a node in a container at pos.
func (tx *Tx) Show(containerID, id string, pos int) (operation.Operation, error) {
	if err := tx.check(); err != nil {
		return operation.Operation{}, err
	}
	return tx.store.Show(containerID, id, pos)
}

// Hide removes a node from a container.
func (tx *Tx) Hide(containerID, id string) (operation.Operation, error) {
	if err := tx.check(); err != nil {
		return operation.Operation{}, err
	}
	return tx.store.Hide(containerID, id)
}

// Indent indents a list item.
func (tx *Tx) Indent(id string) ([]operation.Operation, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	return tx.store.Indent(id)
}

// Dedent dedents a list item.
func (tx *Tx) Dedent(id string) ([]operation.Operation, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	return tx.store.Dedent(id)
}

// Commit closes the transaction and returns a change holding exactly the
// buffered operations.
func (tx *Tx) Commit(info map[string]any) (*change.Change, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	tx.close()
	c := change.New(tx.ops, info).WithSelections(tx.before, tx.after)
	tx.committed = c
	recordCommit(context.Background(), time.Since(tx.started), len(tx.ops))
	tx.logger.Debug("transaction committed", "change", c.ID, "ops", len(c.Ops))
	return c, nil
}

// Rollback closes the transaction and reverts every buffered operation in
// reverse order, leaving the store as it was when the transaction began.
func (tx *Tx) Rollback() error {
	return tx.rollback("user")
}

func (tx *Tx) rollback(reason string) error {
	if err := tx.check(); err != nil {
		return err
	}
	tx.close()

	var errs []error
	for i := len(tx.ops) - 1; i >= 0; i-- {
		inv, err := operation.Invert(tx.ops[i])
		if err == nil {
			err = tx.store.Apply(inv)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("revert %s: %w", tx.ops[i], err))
		}
	}
	err := errors.Join(errs...)
	recordRollback(context.Background(), time.Since(tx.started), len(tx.ops), reason, err == nil)
	if err != nil {
		tx.logger.Error("transaction rollback incomplete", "ops", len(tx.ops), "error", err)
		return err
	}
	tx.logger.Debug("transaction rolled back", "ops", len(tx.ops), "reason", reason)
	return nil
}

func (tx *Tx) close() {
	tx.closed = true
	tx.store.Detach(tx)
}

// Run runs fn inside a transaction and commits it. If fn returns an error
// the transaction is rolled back and the error returned. If fn panics the
// transaction is rolled back and the panic continues. If fn commits the
// transaction itself, that change is returned; if fn rolls it back and
// returns nil, Run fails with docerr.ErrIllegalState.
func Run(store *document.Store, before change.Selection, info map[string]any, fn func(tx *Tx) error) (*change.Change, error) {
	tx, err := Begin(store, before)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			if !tx.closed {
				_ = tx.rollback("panic")
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if tx.closed {
			return nil, err
		}
		if rerr := tx.rollback("error"); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	if tx.committed != nil {
		return tx.committed, nil
	}
	if tx.closed {
		return nil, docerr.IllegalState("transaction rolled back inside its block")
	}
	return tx.Commit(info)
}
