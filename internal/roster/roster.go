// Package roster keeps the weighted membership groups an event delegates
// identity to: one group of ushers and one group of guests.
package roster

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"ms-ledger/internal/database"
	"ms-ledger/internal/models"

	"github.com/uptrace/bun"
)

// Membership is the view of a single roster group the ledger depends on.
type Membership interface {
	MemberWeight(ctx context.Context, addr string) (uint64, bool, error)
	UpdateMembers(ctx context.Context, add []models.Member, remove []string) error
}

const saltNamespace = "aves"

// GroupAddresses derives the usher and guest roster addresses of an event.
func GroupAddresses(eventID string) (usher, guest string) {
	h := sha256.New()
	h.Write([]byte(saltNamespace))
	h.Write([]byte(eventID))
	usherSalt := h.Sum(nil)

	guestSalt := make([]byte, len(usherSalt))
	copy(guestSalt, usherSalt)
	guestSalt[0] ^= 0xff

	return deriveAddress(eventID, usherSalt), deriveAddress(eventID, guestSalt)
}

func deriveAddress(eventID string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(eventID))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil)[:20])
}

type Store struct {
	DB *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{DB: db}
}

// Instantiate creates a group at address seeded with members. It joins the
// transaction carried by ctx, if any.
func (s *Store) Instantiate(ctx context.Context, address, label, admin string, members []models.Member) error {
	conn := database.Conn(ctx, s.DB)

	group := models.RosterGroup{Address: address, Label: label, Admin: admin, CreatedAt: time.Now().UTC()}
	if _, err := conn.NewInsert().Model(&group).Exec(ctx); err != nil {
		return fmt.Errorf("create roster group %s: %w", address, err)
	}
	return s.Group(address).UpdateMembers(ctx, members, nil)
}

func (s *Store) Group(address string) *Group {
	return &Group{db: s.DB, Address: address}
}

func (s *Store) Membership(address string) Membership {
	return s.Group(address)
}

// Group is a bun backed Membership.
type Group struct {
	db      *bun.DB
	Address string
}

func (g *Group) MemberWeight(ctx context.Context, addr string) (uint64, bool, error) {
	var m models.RosterMember
	err := database.Conn(ctx, g.db).NewSelect().
		Model(&m).
		Where("group_address = ?", g.Address).
		Where("address = ?", addr).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s in roster %s: %w", addr, g.Address, err)
	}
	return m.Weight, true, nil
}

// UpdateMembers upserts add, then deletes remove. An address in both lists
// ends up removed.
func (g *Group) UpdateMembers(ctx context.Context, add []models.Member, remove []string) error {
	conn := database.Conn(ctx, g.db)

	if len(add) > 0 {
		rows := make([]models.RosterMember, len(add))
		for i, m := range add {
			if m.Address == "" {
				return fmt.Errorf("roster %s: %w", g.Address, models.ErrInvalidAddress)
			}
			rows[i] = models.RosterMember{GroupAddress: g.Address, Address: m.Address, Weight: m.Weight}
		}
		_, err := conn.NewInsert().
			Model(&rows).
			On("CONFLICT (group_address, address) DO UPDATE").
			Set("weight = EXCLUDED.weight").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("add members to roster %s: %w", g.Address, err)
		}
	}

	if len(remove) > 0 {
		_, err := conn.NewDelete().
			Model((*models.RosterMember)(nil)).
			Where("group_address = ?", g.Address).
			Where("address IN (?)", bun.In(remove)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("remove members from roster %s: %w", g.Address, err)
		}
	}
	return nil
}

// Members lists the group ordered by address.
func (g *Group) Members(ctx context.Context) ([]models.Member, error) {
	var rows []models.RosterMember
	err := database.Conn(ctx, g.db).NewSelect().
		Model(&rows).
		Where("group_address = ?", g.Address).
		Order("address ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Member, len(rows))
	for i, r := range rows {
		out[i] = models.Member{Address: r.Address, Weight: r.Weight}
	}
	return out, nil
}
