package postgresstore

import (
	"context"
	"errors"

	"github.com/openshelf/circulation-go/circulation"
)

// Schema is the DDL for the circulation tables. It is idempotent so tests
// and development setups can apply it on every start.
//
// The uniqueness rules the engine checks up front are enforced here too:
// member emails, publisher names and emails, book ISBNs, and at most one
// pending reservation per book and member (a partial unique index). A
// serializable transaction that races past the engine's check fails on the
// constraint and is mapped back to the matching conflict error.
const Schema = `
CREATE TABLE IF NOT EXISTS branches (
    id       BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name     TEXT NOT NULL,
    address  TEXT NOT NULL DEFAULT '',
    phone    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS staff (
    id        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    branch_id BIGINT NOT NULL REFERENCES branches (id),
    name      TEXT NOT NULL,
    email     TEXT NOT NULL DEFAULT '',
    role      TEXT NOT NULL,
    hired_at  TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
    id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name              TEXT NOT NULL,
    email             TEXT NOT NULL,
    membership        TEXT NOT NULL,
    joined_at         TIMESTAMP WITH TIME ZONE NOT NULL,
    expires_at        TIMESTAMP WITH TIME ZONE NOT NULL,
    max_books_allowed INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS members_email_key ON members (lower(email));

CREATE TABLE IF NOT EXISTS authors (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name       TEXT NOT NULL,
    birth_year INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS publishers (
    id    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name  TEXT NOT NULL,
    email TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS publishers_name_key ON publishers (lower(name));
CREATE UNIQUE INDEX IF NOT EXISTS publishers_email_key ON publishers (lower(email));

CREATE TABLE IF NOT EXISTS books (
    id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    isbn             TEXT NOT NULL,
    title            TEXT NOT NULL,
    publisher_id     BIGINT NOT NULL REFERENCES publishers (id),
    publication_year INTEGER NOT NULL DEFAULT 0,
    edition          TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS books_isbn_key ON books (isbn);

CREATE TABLE IF NOT EXISTS book_authors (
    book_id   BIGINT NOT NULL REFERENCES books (id),
    author_id BIGINT NOT NULL REFERENCES authors (id),
    position  INTEGER NOT NULL,
    PRIMARY KEY (book_id, author_id)
);

CREATE TABLE IF NOT EXISTS book_copies (
    id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    book_id        BIGINT NOT NULL REFERENCES books (id),
    branch_id      BIGINT NOT NULL REFERENCES branches (id),
    shelf_location TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    condition      TEXT NOT NULL,
    acquired_at    TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS book_copies_book_idx ON book_copies (book_id);
CREATE INDEX IF NOT EXISTS book_copies_branch_idx ON book_copies (branch_id);

CREATE TABLE IF NOT EXISTS loans (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    copy_id     BIGINT NOT NULL REFERENCES book_copies (id),
    member_id   BIGINT NOT NULL REFERENCES members (id),
    staff_id    BIGINT NOT NULL REFERENCES staff (id),
    loan_date   TIMESTAMP WITH TIME ZONE NOT NULL,
    due_date    TIMESTAMP WITH TIME ZONE NOT NULL,
    return_date TIMESTAMP WITH TIME ZONE,
    late_fee    NUMERIC(10, 2) NOT NULL DEFAULT 0,
    status      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS loans_member_idx ON loans (member_id);
CREATE UNIQUE INDEX IF NOT EXISTS loans_open_copy_key ON loans (copy_id)
    WHERE status IN ('Active', 'Overdue');

CREATE TABLE IF NOT EXISTS reservations (
    id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    book_id          BIGINT NOT NULL REFERENCES books (id),
    member_id        BIGINT NOT NULL REFERENCES members (id),
    priority         INTEGER NOT NULL DEFAULT 0,
    reservation_date TIMESTAMP WITH TIME ZONE NOT NULL,
    status           TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS reservations_pending_key ON reservations (book_id, member_id)
    WHERE status = 'Pending';
CREATE INDEX IF NOT EXISTS reservations_book_idx ON reservations (book_id);

CREATE TABLE IF NOT EXISTS fines (
    id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    member_id    BIGINT NOT NULL REFERENCES members (id),
    loan_id      BIGINT REFERENCES loans (id),
    amount       NUMERIC(10, 2) NOT NULL,
    paid_amount  NUMERIC(10, 2) NOT NULL DEFAULT 0,
    reason       TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    issued_at    TIMESTAMP WITH TIME ZONE NOT NULL,
    payment_date TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS fines_member_idx ON fines (member_id);
CREATE INDEX IF NOT EXISTS fines_loan_idx ON fines (loan_id);

CREATE TABLE IF NOT EXISTS audit_log (
    entry_id    UUID PRIMARY KEY,
    table_name  TEXT NOT NULL,
    record_id   BIGINT NOT NULL,
    action      TEXT NOT NULL,
    before      JSONB,
    after       JSONB,
    actor_staff BIGINT NOT NULL DEFAULT 0,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_log_record_idx ON audit_log (table_name, record_id);
`

// CreateSchema applies the DDL on the store's database handle.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return errors.Join(circulation.ErrValidation, err)
	}

	return nil
}
