package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/duedate"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/query"
)

// Sample debtor created in an empty store.
const (
	sampleDebtorName  = "Exemplo"
	sampleDebtorPhone = "11999999999"
	sampleDebtorNotes = "Novo"
)

type state struct {
	debtors []ledger.Debtor
	loans   []ledger.Loan
	cards   []ledger.Card
}

func (st state) clone() state {
	out := state{
		debtors: append([]ledger.Debtor{}, st.debtors...),
		cards:   append([]ledger.Card{}, st.cards...),
		loans:   make([]ledger.Loan, len(st.loans)),
	}
	for i, l := range st.loans {
		out.loans[i] = l.Clone()
	}
	return out
}

// pruneOrphans drops loans whose debtor no longer exists and returns how
// many were dropped.
func (st *state) pruneOrphans() int {
	known := make(map[ledger.ID]bool, len(st.debtors))
	for _, d := range st.debtors {
		known[d.ID] = true
	}
	kept := st.loans[:0]
	for _, l := range st.loans {
		if known[l.DebtorID] {
			kept = append(kept, l)
		}
	}
	pruned := len(st.loans) - len(kept)
	st.loans = kept
	return pruned
}

func (st state) maxID() ledger.ID {
	var max ledger.ID
	for _, d := range st.debtors {
		if d.ID > max {
			max = d.ID
		}
	}
	for _, c := range st.cards {
		if c.ID > max {
			max = c.ID
		}
	}
	for _, l := range st.loans {
		if l.ID > max {
			max = l.ID
		}
	}
	return max
}

// Store is the ledger repository. Every mutation is applied to a copy of
// the state, saved in full, and only then made visible. A failed save leaves
// the previous state in place.
type Store struct {
	mu     sync.Mutex
	kv     KV
	logger *zap.Logger
	now    func() time.Time
	state  state
	lastID ledger.ID
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for IDs and backup stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open loads the snapshots from kv. When no current loan snapshot exists it
// imports the legacy flat list, or seeds a sample debtor into an empty store.
// Loans of missing debtors are pruned. Any change made while loading is
// saved before Open returns.
func Open(ctx context.Context, logger *zap.Logger, kv KV, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{kv: kv, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeKey[T any](ctx context.Context, kv KV, key string) ([]T, bool, error) {
	data, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return []T{}, ok, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ledger.ErrDataShape, key, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, true, nil
}

func (s *Store) load(ctx context.Context) error {
	var st state
	var err error
	var hasLoans bool

	if st.debtors, _, err = decodeKey[ledger.Debtor](ctx, s.kv, constants.DebtorsKey); err != nil {
		return err
	}
	if st.cards, _, err = decodeKey[ledger.Card](ctx, s.kv, constants.CardsKey); err != nil {
		return err
	}
	if st.loans, hasLoans, err = decodeKey[ledger.Loan](ctx, s.kv, constants.LoansKey); err != nil {
		return err
	}

	changed := false
	if !hasLoans {
		records, hasLegacy, err := decodeKey[LegacyRecord](ctx, s.kv, constants.LegacyLoansKey)
		if err != nil {
			return err
		}
		switch {
		case hasLegacy:
			debtors, loans, err := ImportLegacy(records)
			if err != nil {
				return err
			}
			st.debtors = append(st.debtors, debtors...)
			st.loans = append(st.loans, loans...)
			changed = true
			s.logger.Info("imported legacy records",
				zap.String("op", "store.load"),
				zap.Int("records", len(records)),
			)
		case len(st.debtors) == 0:
			s.lastID = st.maxID()
			st.debtors = append(st.debtors, ledger.Debtor{
				ID:    s.nextID(),
				Name:  sampleDebtorName,
				Phone: sampleDebtorPhone,
				Notes: sampleDebtorNotes,
			})
			changed = true
			s.logger.Info("seeded sample debtor", zap.String("op", "store.load"))
		}
	}

	if pruned := st.pruneOrphans(); pruned > 0 {
		changed = true
		s.logger.Info("pruned orphan loans",
			zap.String("op", "store.load"),
			zap.Int("pruned", pruned),
		)
	}

	if changed {
		if err := s.save(ctx, st); err != nil {
			return err
		}
	}

	s.state = st
	if max := st.maxID(); max > s.lastID {
		s.lastID = max
	}
	s.logger.Debug("store loaded",
		zap.String("op", "store.load"),
		zap.Int("debtors", len(st.debtors)),
		zap.Int("loans", len(st.loans)),
		zap.Int("cards", len(st.cards)),
	)
	return nil
}

func (s *Store) save(ctx context.Context, st state) error {
	snapshots := []struct {
		key   string
		value any
	}{
		{constants.DebtorsKey, nonNil(st.debtors)},
		{constants.LoansKey, nonNil(st.loans)},
		{constants.CardsKey, nonNil(st.cards)},
	}
	entries := make([]Entry, 0, len(snapshots))
	for _, snap := range snapshots {
		data, err := json.Marshal(snap.value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", snap.key, err)
		}
		entries = append(entries, Entry{Key: snap.key, Value: data})
	}
	if err := s.kv.SetMany(ctx, entries); err != nil {
		s.logger.Error("failed to save snapshots",
			zap.String("op", "store.save"),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// mutate runs fn on a copy of the state and commits the copy once saved.
func (s *Store) mutate(ctx context.Context, op ledger.Operation, confirmed bool, fn func(st *state) error) error {
	if err := ledger.Confirm(op, confirmed); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.save(ctx, next); err != nil {
		// A backend that applied part of the batch must not keep it.
		if restoreErr := s.save(ctx, s.state); restoreErr != nil {
			s.logger.Error("failed to restore previous snapshots",
				zap.String("op", "store.mutate"),
				zap.Error(restoreErr),
			)
		}
		return err
	}
	s.state = next
	s.logger.Debug("mutation saved", zap.String("op", "store."+string(op)))
	return nil
}

// nextID returns a creation-time ID that is unique within the store.
// Callers hold s.mu or run before the store is shared.
func (s *Store) nextID() ledger.ID {
	id := ledger.ID(s.now().UnixMilli())
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Debtors returns a copy of the debtor list.
func (s *Store) Debtors() []ledger.Debtor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Debtor{}, s.state.debtors...)
}

// Cards returns a copy of the card list.
func (s *Store) Cards() []ledger.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Card{}, s.state.cards...)
}

// Loans returns a deep copy of the loan list.
func (s *Store) Loans() []ledger.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone().loans
}

// Debtor returns the debtor with the given ID.
func (s *Store) Debtor(id ledger.ID) (ledger.Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.state.debtors {
		if d.ID == id {
			return d, nil
		}
	}
	return ledger.Debtor{}, fmt.Errorf("%w: debtor %s", ledger.ErrNotFound, id)
}

// Loan returns a copy of the loan with the given ID.
func (s *Store) Loan(id ledger.ID) (ledger.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, err := findLoan(&s.state, id)
	if err != nil {
		return ledger.Loan{}, err
	}
	return loan.Clone(), nil
}

func findLoan(st *state, id ledger.ID) (*ledger.Loan, error) {
	for i := range st.loans {
		if st.loans[i].ID == id {
			return &st.loans[i], nil
		}
	}
	return nil, fmt.Errorf("%w: loan %s", ledger.ErrNotFound, id)
}

func findCard(st *state, id ledger.ID) *ledger.Card {
	for i := range st.cards {
		if st.cards[i].ID == id {
			return &st.cards[i]
		}
	}
	return nil
}

func hasDebtor(st *state, id ledger.ID) bool {
	for _, d := range st.debtors {
		if d.ID == id {
			return true
		}
	}
	return false
}

// AddDebtor creates a debtor.
func (s *Store) AddDebtor(ctx context.Context, in ledger.DebtorInput) (ledger.Debtor, error) {
	var created ledger.Debtor
	err := s.mutate(ctx, ledger.OpAddDebtor, true, func(st *state) error {
		debtor, err := ledger.NewDebtor(s.nextID(), in)
		if err != nil {
			return err
		}
		st.debtors = append(st.debtors, debtor)
		created = debtor
		return nil
	})
	return created, err
}

// DeleteDebtor removes a debtor and every loan referencing it. It returns
// the number of loans removed.
func (s *Store) DeleteDebtor(ctx context.Context, id ledger.ID, confirmed bool) (int, error) {
	removed := 0
	err := s.mutate(ctx, ledger.OpDeleteDebtor, confirmed, func(st *state) error {
		if !hasDebtor(st, id) {
			return fmt.Errorf("%w: debtor %s", ledger.ErrNotFound, id)
		}
		debtors := st.debtors[:0]
		for _, d := range st.debtors {
			if d.ID != id {
				debtors = append(debtors, d)
			}
		}
		st.debtors = debtors
		removed = st.pruneOrphans()
		return nil
	})
	if err == nil {
		s.logger.Info("deleted debtor",
			zap.String("op", "store.DeleteDebtor"),
			zap.Int64("debtor", int64(id)),
			zap.Int("loans", removed),
		)
	}
	return removed, err
}

// AddCard creates a card.
func (s *Store) AddCard(ctx context.Context, in ledger.CardInput) (ledger.Card, error) {
	var created ledger.Card
	err := s.mutate(ctx, ledger.OpAddCard, true, func(st *state) error {
		card, err := ledger.NewCard(s.nextID(), in)
		if err != nil {
			return err
		}
		st.cards = append(st.cards, card)
		created = card
		return nil
	})
	return created, err
}

// DeleteCard removes a card. Loans keep the dangling reference and show the
// no-card placeholder.
func (s *Store) DeleteCard(ctx context.Context, id ledger.ID, confirmed bool) error {
	return s.mutate(ctx, ledger.OpDeleteCard, confirmed, func(st *state) error {
		if findCard(st, id) == nil {
			return fmt.Errorf("%w: card %s", ledger.ErrNotFound, id)
		}
		cards := st.cards[:0]
		for _, c := range st.cards {
			if c.ID != id {
				cards = append(cards, c)
			}
		}
		st.cards = cards
		return nil
	})
}

// AddLoan creates a loan with a fresh schedule. The debtor, and for card
// loans the card, must exist.
func (s *Store) AddLoan(ctx context.Context, in ledger.LoanInput) (ledger.Loan, error) {
	var created ledger.Loan
	err := s.mutate(ctx, ledger.OpAddLoan, true, func(st *state) error {
		if in.DebtorID != 0 && !hasDebtor(st, in.DebtorID) {
			return fmt.Errorf("%w: debtor %s", ledger.ErrNotFound, in.DebtorID)
		}
		loan, err := ledger.NewLoan(s.nextID(), in, findCard(st, in.CardID))
		if err != nil {
			return err
		}
		st.loans = append(st.loans, loan)
		created = loan.Clone()
		return nil
	})
	return created, err
}

// DeleteLoan removes a loan and its installments.
func (s *Store) DeleteLoan(ctx context.Context, id ledger.ID, confirmed bool) error {
	return s.mutate(ctx, ledger.OpDeleteLoan, confirmed, func(st *state) error {
		if _, err := findLoan(st, id); err != nil {
			return err
		}
		loans := st.loans[:0]
		for _, l := range st.loans {
			if l.ID != id {
				loans = append(loans, l)
			}
		}
		st.loans = loans
		return nil
	})
}

func (s *Store) updateInstallment(ctx context.Context, op ledger.Operation, confirmed bool, loanID ledger.ID, number int,
	fn func(inst ledger.Installment) (ledger.Installment, error)) (ledger.Installment, error) {
	var updated ledger.Installment
	err := s.mutate(ctx, op, confirmed, func(st *state) error {
		loan, err := findLoan(st, loanID)
		if err != nil {
			return err
		}
		inst, err := loan.Installment(number)
		if err != nil {
			return err
		}
		next, err := fn(*inst)
		if err != nil {
			return err
		}
		*inst = next
		updated = next
		return nil
	})
	return updated, err
}

// ApplyPayment adds a payment to one installment.
func (s *Store) ApplyPayment(ctx context.Context, loanID ledger.ID, number int, amount float64) (ledger.Installment, error) {
	return s.updateInstallment(ctx, ledger.OpApplyPayment, true, loanID, number, func(inst ledger.Installment) (ledger.Installment, error) {
		return ledger.ApplyPayment(inst, amount)
	})
}

// ReversePayment clears every payment of one installment.
func (s *Store) ReversePayment(ctx context.Context, loanID ledger.ID, number int, confirmed bool) (ledger.Installment, error) {
	return s.updateInstallment(ctx, ledger.OpReversePayment, confirmed, loanID, number, func(inst ledger.Installment) (ledger.Installment, error) {
		return ledger.ReversePayment(inst), nil
	})
}

// DecideToggle reports what toggling an installment would do.
func (s *Store) DecideToggle(loanID ledger.ID, number int) (ledger.ToggleDecision, error) {
	loan, err := s.Loan(loanID)
	if err != nil {
		return ledger.ToggleDecision{}, err
	}
	inst, err := loan.Installment(number)
	if err != nil {
		return ledger.ToggleDecision{}, err
	}
	return ledger.DecideToggle(*inst), nil
}

// Toggle pays the remaining balance (or amountInput) of an unpaid
// installment, or reverses a paid one when confirmed.
func (s *Store) Toggle(ctx context.Context, loanID ledger.ID, number int, amountInput string, confirmed bool) (ledger.Installment, ledger.ToggleDecision, error) {
	var decision ledger.ToggleDecision
	updated, err := s.updateInstallment(ctx, ledger.OpApplyPayment, true, loanID, number, func(inst ledger.Installment) (ledger.Installment, error) {
		next, d, err := ledger.Toggle(inst, amountInput, confirmed)
		decision = d
		return next, err
	})
	return updated, decision, err
}

// InstallmentRef identifies one installment of one loan.
type InstallmentRef struct {
	LoanID ledger.ID `json:"loanId"`
	Number int       `json:"number"`
}

// ParseInstallmentRef parses the "<loanID>_<number>" form used by row
// selections.
func ParseInstallmentRef(value string) (InstallmentRef, error) {
	idx := strings.LastIndex(value, "_")
	if idx <= 0 {
		return InstallmentRef{}, fmt.Errorf("%w: invalid installment reference %q", ledger.ErrValidation, value)
	}
	loanID, err := ledger.ParseID(value[:idx])
	if err != nil {
		return InstallmentRef{}, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	number, err := strconv.Atoi(value[idx+1:])
	if err != nil {
		return InstallmentRef{}, fmt.Errorf("%w: invalid installment number in %q", ledger.ErrValidation, value)
	}
	return InstallmentRef{LoanID: loanID, Number: number}, nil
}

// MarkPaid pays the referenced installments in full and returns how many
// changed. Unknown references are skipped. Nothing is saved when nothing
// changed.
func (s *Store) MarkPaid(ctx context.Context, refs []InstallmentRef, confirmed bool) (int, error) {
	changed := 0
	err := s.mutate(ctx, ledger.OpMarkPaid, confirmed, func(st *state) error {
		for _, ref := range refs {
			loan, err := findLoan(st, ref.LoanID)
			if err != nil {
				continue
			}
			inst, err := loan.Installment(ref.Number)
			if err != nil {
				continue
			}
			next, ok := ledger.MarkPaid(*inst)
			if ok {
				*inst = next
				changed++
			}
		}
		if changed == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	return changed, err
}

var errNoChange = errors.New("no change")

// Snapshot returns a backup of the current state.
func (s *Store) Snapshot() Backup {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.clone()
	return NewBackup(st.loans, st.debtors, st.cards, s.now())
}

// Restore replaces the whole dataset with the backup. Loans of debtors
// missing from the backup are pruned.
func (s *Store) Restore(ctx context.Context, backup Backup, confirmed bool) error {
	pruned := 0
	err := s.mutate(ctx, ledger.OpRestore, confirmed, func(st *state) error {
		restored := state{
			debtors: nonNil(backup.Debtors),
			cards:   nonNil(backup.Cards),
			loans:   nonNil(backup.Loans),
		}.clone()
		pruned = restored.pruneOrphans()
		*st = restored
		if max := restored.maxID(); max > s.lastID {
			s.lastID = max
		}
		return nil
	})
	if err == nil {
		s.logger.Info("restored backup",
			zap.String("op", "store.Restore"),
			zap.String("backupDate", backup.BackupDate),
			zap.Int("pruned", pruned),
		)
	}
	return err
}

// Query runs a filtered query over the current state.
func (s *Store) Query(filters query.Filters) query.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.Run(s.state.loans, s.state.debtors, s.state.cards, filters)
}

// BillingDate computes the first due date of a purchase on a card.
func (s *Store) BillingDate(cardID ledger.ID, purchase time.Time) (time.Time, error) {
	s.mu.Lock()
	var card ledger.Card
	found := findCard(&s.state, cardID)
	if found != nil {
		card = *found
	}
	s.mu.Unlock()
	if found == nil {
		return time.Time{}, fmt.Errorf("%w: card %s", ledger.ErrNotFound, cardID)
	}
	due, err := duedate.BillingDate(purchase, card.DueDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return due, nil
}
