package cairn

import (
	"github.com/chimera-nas/chimera/kv"
	"github.com/chimera-nas/chimera/vfs"
	"github.com/sirupsen/logrus"
)

// pendingCompletion is a request whose handler has run to completion
// against the open transaction but whose Done callback is deferred until
// the transaction actually commits (spec.md §4.3 "Transactions").
type pendingCompletion struct {
	req    *vfs.Request
	status vfs.Status
}

// txnManager holds at most one open kv.Txn per worker, lazily started on
// first use within a tick and committed by a DeferOnTick action once the
// worker's current batch of tasks drains. kv.Store.Update's API hands a
// Txn to a closure and commits when the closure returns, so keeping one
// "open" across many Dispatch calls means running that closure in its
// own goroutine and holding it at a rendezvous point until commit is
// requested — the two channels below are that rendezvous.
type txnManager struct {
	store kv.Store
	log   *logrus.Entry

	open     bool
	txn      kv.Txn
	commitCh chan struct{}
	resultCh chan error
	pending  []pendingCompletion
}

func newTxnManager(store kv.Store, log *logrus.Entry) *txnManager {
	return &txnManager{store: store, log: log}
}

// ensure returns the worker's currently open transaction, starting one
// and registering the end-of-tick commit hook if none is open yet.
func (tm *txnManager) ensure(w *vfs.Worker) kv.Txn {
	if tm.open {
		return tm.txn
	}

	tm.open = true
	tm.commitCh = make(chan struct{})
	tm.resultCh = make(chan error, 1)
	ready := make(chan kv.Txn)

	go func() {
		err := tm.store.Update(func(txn kv.Txn) error {
			ready <- txn
			<-tm.commitCh
			return nil
		})
		tm.resultCh <- err
	}()

	tm.txn = <-ready
	w.DeferOnTick(tm.commit)
	return tm.txn
}

// complete queues req to finish with status once the open transaction
// commits, instead of calling req.Complete directly.
func (tm *txnManager) complete(req *vfs.Request, status vfs.Status) {
	tm.pending = append(tm.pending, pendingCompletion{req: req, status: status})
}

// commit closes the rendezvous, letting the Update goroutine return and
// commit, then fires every queued completion in order. A commit error is
// treated as fatal corruption per spec.md §4.3: "If the KV layer reports
// a commit error, the process aborts."
func (tm *txnManager) commit() {
	close(tm.commitCh)
	err := <-tm.resultCh
	tm.open = false
	pending := tm.pending
	tm.pending = nil

	if err != nil {
		tm.log.WithError(err).Fatal("cairn: transaction commit failed, aborting process")
		return
	}
	for _, pc := range pending {
		pc.req.Complete(pc.status)
	}
}
