package circulation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// AuditTable identifies which entity kind an audit entry describes.
type AuditTable string

const (
	AuditTableBranches     AuditTable = "branches"
	AuditTableStaff        AuditTable = "staff"
	AuditTableMembers      AuditTable = "members"
	AuditTableAuthors      AuditTable = "authors"
	AuditTablePublishers   AuditTable = "publishers"
	AuditTableBooks        AuditTable = "books"
	AuditTableCopies       AuditTable = "book_copies"
	AuditTableLoans        AuditTable = "loans"
	AuditTableReservations AuditTable = "reservations"
	AuditTableFines        AuditTable = "fines"
)

// AuditAction describes what happened to the record.
type AuditAction string

const (
	AuditInsert AuditAction = "insert"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditImage is implemented by every auditable entity. The table tag keeps
// the polymorphic "any table, any record" shape of the trail typed: an
// entry can only be built from images of a single entity kind.
type AuditImage interface {
	AuditTable() AuditTable
}

// AuditEntry is one immutable record of the audit trail: which record
// changed, how, who did it, and the full before/after images as JSON.
// Entries are append-only; the engine never mutates or deletes them.
type AuditEntry struct {
	EntryID    uuid.UUID
	Table      AuditTable
	RecordID   int64
	Action     AuditAction
	Before     json.RawMessage
	After      json.RawMessage
	ActorStaff StaffID
	OccurredAt time.Time
}

// BuildAuditEntry is the factory for audit entries. The before image must
// be nil for inserts and the after image nil for deletes; when both are
// present they must describe the same entity kind. Images are serialized
// with jsoniter and validated.
func BuildAuditEntry(
	action AuditAction,
	recordID int64,
	before AuditImage,
	after AuditImage,
	actor StaffID,
	occurredAt time.Time,
) (AuditEntry, error) {

	table, resolveErr := resolveAuditTable(action, before, after)
	if resolveErr != nil {
		return AuditEntry{}, resolveErr
	}

	entryID, uuidErr := uuid.NewV7()
	if uuidErr != nil {
		return AuditEntry{}, errors.Join(ErrAuditAppendFailed, uuidErr)
	}

	beforeJSON, beforeErr := marshalImage(before)
	if beforeErr != nil {
		return AuditEntry{}, beforeErr
	}

	afterJSON, afterErr := marshalImage(after)
	if afterErr != nil {
		return AuditEntry{}, afterErr
	}

	return AuditEntry{
		EntryID:    entryID,
		Table:      table,
		RecordID:   recordID,
		Action:     action,
		Before:     beforeJSON,
		After:      afterJSON,
		ActorStaff: actor,
		OccurredAt: occurredAt,
	}, nil
}

func resolveAuditTable(action AuditAction, before, after AuditImage) (AuditTable, error) {
	switch action {
	case AuditInsert:
		if before != nil || after == nil {
			return "", ErrInvalidAuditImages
		}

		return after.AuditTable(), nil

	case AuditDelete:
		if before == nil || after != nil {
			return "", ErrInvalidAuditImages
		}

		return before.AuditTable(), nil

	case AuditUpdate:
		if before == nil || after == nil {
			return "", ErrInvalidAuditImages
		}

		if before.AuditTable() != after.AuditTable() {
			return "", ErrInvalidAuditImages
		}

		return after.AuditTable(), nil

	default:
		return "", ErrInvalidAuditImages
	}
}

func marshalImage(image AuditImage) (json.RawMessage, error) {
	if image == nil {
		return nil, nil
	}

	imageJSON, marshalErr := jsoniter.ConfigFastest.Marshal(image)
	if marshalErr != nil {
		return nil, errors.Join(ErrAuditAppendFailed, marshalErr)
	}

	if !jsoniter.ConfigFastest.Valid(imageJSON) {
		return nil, ErrAuditAppendFailed
	}

	return imageJSON, nil
}
