package memory

import (
	"context"
	"sort"
	"time"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/donation"
	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

type stockRepo struct{ view }

func (r *stockRepo) Get(ctx context.Context, group shared.BloodGroup) (*inventory.Stock, error) {
	var (
		stock inventory.Stock
		ok    bool
	)
	r.do(func() { stock, ok = r.s.stock[group] })
	if !ok {
		return nil, shared.NotFoundError{Entity: "stock", ID: string(group)}
	}
	return &stock, nil
}

func (r *stockRepo) GetAll(ctx context.Context) ([]*inventory.Stock, error) {
	var stocks []*inventory.Stock
	r.do(func() {
		for _, g := range shared.AllBloodGroups() {
			if s, ok := r.s.stock[g]; ok {
				stocks = append(stocks, &s)
			}
		}
	})
	return stocks, nil
}

// LockForUpdate is a plain read: the unit of work already holds the store lock
func (r *stockRepo) LockForUpdate(ctx context.Context, group shared.BloodGroup) (*inventory.Stock, error) {
	return r.Get(ctx, group)
}

func (r *stockRepo) Update(ctx context.Context, stock *inventory.Stock) error {
	var err error
	r.do(func() {
		current, ok := r.s.stock[stock.BloodGroup]
		if !ok || current.Version != stock.Version-1 {
			err = shared.ConcurrentModificationError{Entity: "stock", ID: string(stock.BloodGroup)}
			return
		}
		r.s.stock[stock.BloodGroup] = *stock
		r.j.record(func() { r.s.stock[current.BloodGroup] = current })
	})
	return err
}

type transactionRepo struct{ view }

func (r *transactionRepo) Append(ctx context.Context, txn *inventory.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	stored := *txn
	r.do(func() {
		r.s.transactions = append(r.s.transactions, &stored)
		n := len(r.s.transactions) - 1
		r.j.record(func() { r.s.transactions = r.s.transactions[:n] })
	})
	return nil
}

func (r *transactionRepo) matching(filter inventory.Filter) []*inventory.Transaction {
	var out []*inventory.Transaction
	r.do(func() {
		for _, t := range r.s.transactions {
			if filter.Matches(t) {
				c := *t
				out = append(out, &c)
			}
		}
	})
	return out
}

func (r *transactionRepo) List(ctx context.Context, filter inventory.Filter) ([]*inventory.Transaction, error) {
	txns := r.matching(filter)
	sortNewestFirst(txns, func(t *inventory.Transaction) time.Time { return t.CreatedAt })
	return page(txns, filter.Limit, filter.Offset), nil
}

func (r *transactionRepo) Count(ctx context.Context, filter inventory.Filter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

type bagRepo struct{ view }

func (r *bagRepo) Create(ctx context.Context, b *bag.BloodBag) error {
	var err error
	r.do(func() {
		if _, taken := r.s.bagNumbers[b.BagNumber]; taken {
			err = shared.DuplicateBagNumberError{BagNumber: b.BagNumber}
			return
		}
		r.s.bags[b.ID] = *b
		r.s.bagNumbers[b.BagNumber] = b.ID
		id, number := b.ID, b.BagNumber
		r.j.record(func() {
			delete(r.s.bags, id)
			delete(r.s.bagNumbers, number)
		})
	})
	return err
}

func (r *bagRepo) GetByID(ctx context.Context, id uuid.UUID) (*bag.BloodBag, error) {
	var (
		b  bag.BloodBag
		ok bool
	)
	r.do(func() { b, ok = r.s.bags[id] })
	if !ok {
		return nil, shared.NotFoundError{Entity: "blood bag", ID: id.String()}
	}
	return &b, nil
}

func (r *bagRepo) GetByNumber(ctx context.Context, bagNumber string) (*bag.BloodBag, error) {
	var (
		b  bag.BloodBag
		ok bool
	)
	r.do(func() {
		var id uuid.UUID
		if id, ok = r.s.bagNumbers[bagNumber]; ok {
			b = r.s.bags[id]
		}
	})
	if !ok {
		return nil, shared.NotFoundError{Entity: "blood bag", ID: bagNumber}
	}
	return &b, nil
}

func (r *bagRepo) ListAvailable(ctx context.Context, group shared.BloodGroup) ([]*bag.BloodBag, error) {
	var bags []*bag.BloodBag
	r.do(func() {
		for _, b := range r.s.bags {
			if b.IsAvailable() && (group == "" || b.BloodGroup == group) {
				c := b
				bags = append(bags, &c)
			}
		}
	})
	sort.SliceStable(bags, func(i, j int) bool { return bags[i].CreatedAt.Before(bags[j].CreatedAt) })
	return bags, nil
}

func (r *bagRepo) MarkUsed(ctx context.Context, id uuid.UUID, requestID uuid.UUID) (*bag.BloodBag, error) {
	var (
		used bag.BloodBag
		err  error
	)
	r.do(func() {
		current, ok := r.s.bags[id]
		if !ok {
			err = shared.NotFoundError{Entity: "blood bag", ID: id.String()}
			return
		}
		if !current.IsAvailable() {
			err = shared.AlreadyUsedError{BagID: id.String()}
			return
		}
		now := time.Now()
		used = current
		used.Status = bag.StatusUsed
		used.UsedByRequestID = &requestID
		used.UsedAt = &now
		r.s.bags[id] = used
		r.j.record(func() { r.s.bags[id] = current })
	})
	if err != nil {
		return nil, err
	}
	return &used, nil
}

type requestRepo struct{ view }

func (r *requestRepo) Create(ctx context.Context, req *bloodrequest.BloodRequest) error {
	r.do(func() {
		r.s.requests[req.ID] = *req
		id := req.ID
		r.j.record(func() { delete(r.s.requests, id) })
	})
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id uuid.UUID) (*bloodrequest.BloodRequest, error) {
	var (
		req bloodrequest.BloodRequest
		ok  bool
	)
	r.do(func() { req, ok = r.s.requests[id] })
	if !ok {
		return nil, shared.NotFoundError{Entity: "blood request", ID: id.String()}
	}
	return &req, nil
}

func (r *requestRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*bloodrequest.BloodRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *requestRepo) Update(ctx context.Context, req *bloodrequest.BloodRequest) error {
	var err error
	r.do(func() {
		current, ok := r.s.requests[req.ID]
		if !ok || current.Version != req.Version-1 {
			err = shared.ConcurrentModificationError{Entity: "blood request", ID: req.ID.String()}
			return
		}
		r.s.requests[req.ID] = *req
		r.j.record(func() { r.s.requests[current.ID] = current })
	})
	return err
}

func (r *requestRepo) matching(filter bloodrequest.Filter) []*bloodrequest.BloodRequest {
	var out []*bloodrequest.BloodRequest
	r.do(func() {
		for _, req := range r.s.requests {
			if filter.Matches(&req) {
				c := req
				out = append(out, &c)
			}
		}
	})
	return out
}

func (r *requestRepo) List(ctx context.Context, filter bloodrequest.Filter) ([]*bloodrequest.BloodRequest, error) {
	reqs := r.matching(filter)
	sortNewestFirst(reqs, func(req *bloodrequest.BloodRequest) time.Time { return req.CreatedAt })
	return page(reqs, filter.Limit, filter.Offset), nil
}

func (r *requestRepo) Count(ctx context.Context, filter bloodrequest.Filter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

type donationRepo struct{ view }

func (r *donationRepo) Create(ctx context.Context, req *donation.Request) error {
	r.do(func() {
		r.s.donations[req.ID] = *req
		id := req.ID
		r.j.record(func() { delete(r.s.donations, id) })
	})
	return nil
}

func (r *donationRepo) GetByID(ctx context.Context, id uuid.UUID) (*donation.Request, error) {
	var (
		req donation.Request
		ok  bool
	)
	r.do(func() { req, ok = r.s.donations[id] })
	if !ok {
		return nil, shared.NotFoundError{Entity: "donation request", ID: id.String()}
	}
	return &req, nil
}

func (r *donationRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*donation.Request, error) {
	return r.GetByID(ctx, id)
}

func (r *donationRepo) Update(ctx context.Context, req *donation.Request) error {
	var err error
	r.do(func() {
		current, ok := r.s.donations[req.ID]
		if !ok || current.Version != req.Version-1 {
			err = shared.ConcurrentModificationError{Entity: "donation request", ID: req.ID.String()}
			return
		}
		r.s.donations[req.ID] = *req
		r.j.record(func() { r.s.donations[current.ID] = current })
	})
	return err
}

func (r *donationRepo) matching(filter donation.Filter) []*donation.Request {
	var out []*donation.Request
	r.do(func() {
		for _, req := range r.s.donations {
			if filter.Matches(&req) {
				c := req
				out = append(out, &c)
			}
		}
	})
	return out
}

func (r *donationRepo) List(ctx context.Context, filter donation.Filter) ([]*donation.Request, error) {
	reqs := r.matching(filter)
	sortNewestFirst(reqs, func(req *donation.Request) time.Time { return req.CreatedAt })
	return page(reqs, filter.Limit, filter.Offset), nil
}

func (r *donationRepo) Count(ctx context.Context, filter donation.Filter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

type outboxRepo struct{ view }

func (r *outboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	var err error
	r.do(func() {
		for _, m := range r.s.outbox {
			if m.EventID == message.EventID {
				err = outbox.ErrDuplicateMessage{EventID: message.EventID}
				return
			}
		}
		r.s.outboxSeq++
		message.ID = r.s.outboxSeq
		stored := *message
		r.s.outbox = append(r.s.outbox, &stored)
		n := len(r.s.outbox) - 1
		r.j.record(func() {
			r.s.outbox = r.s.outbox[:n]
			r.s.outboxSeq--
		})
	})
	return err
}

func (r *outboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	var pending []*outbox.Message
	r.do(func() {
		for _, m := range r.s.outbox {
			if m.Status != shared.OutboxStatusPending {
				continue
			}
			c := *m
			pending = append(pending, &c)
			if limit > 0 && len(pending) == limit {
				return
			}
		}
	})
	return pending, nil
}

// find returns the stored message with id. Callers hold the lock.
func (r *outboxRepo) find(id int64) (*outbox.Message, int) {
	for i, m := range r.s.outbox {
		if m.ID == id {
			return m, i
		}
	}
	return nil, -1
}

func (r *outboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	var err error
	r.do(func() {
		m, _ := r.find(id)
		if m == nil {
			err = outbox.ErrMessageNotFound{ID: id}
			return
		}
		prev := *m
		m.SetStatus(status)
		r.j.record(func() { *m = prev })
	})
	return err
}

func (r *outboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	var err error
	r.do(func() {
		m, _ := r.find(id)
		if m == nil {
			err = outbox.ErrMessageNotFound{ID: id}
			return
		}
		prev := *m
		m.IncrementAttempts()
		r.j.record(func() { *m = prev })
	})
	return err
}

func (r *outboxRepo) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	r.do(func() {
		prev := r.s.outbox
		kept := make([]*outbox.Message, 0, len(prev))
		for _, m := range prev {
			if m.Status == shared.OutboxStatusProcessed && m.LastAttemptAt != nil && m.LastAttemptAt.Before(before) {
				purged++
				continue
			}
			kept = append(kept, m)
		}
		r.s.outbox = kept
		r.j.record(func() { r.s.outbox = prev })
	})
	return purged, nil
}

func (r *outboxRepo) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	var found *outbox.Message
	r.do(func() {
		for _, m := range r.s.outbox {
			if m.EventID == eventID {
				c := *m
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, outbox.ErrMessageNotFound{}
	}
	return found, nil
}
