package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	Postgres   *PGInfo  `json:"postgres,omitempty"`
}

// PGInfo is the driver-neutral part of a postgres error. Both pgx and lib/pq
// are linked in, so either may surface.
type PGInfo struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Postgres: postgresInfo(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

func postgresInfo(err error) *PGInfo {
	var pgx *pgconn.PgError
	if errors.As(err, &pgx) {
		return &PGInfo{Code: pgx.Code, Constraint: pgx.ConstraintName, Table: pgx.TableName, Detail: pgx.Detail, Message: pgx.Message}
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return &PGInfo{Code: string(pqe.Code), Constraint: pqe.Constraint, Table: pqe.Table, Detail: pqe.Detail, Message: pqe.Message}
	}
	return nil
}

// Fields flattens the dump into logger fields. Postgres keys appear only
// when a driver error is in the chain.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
		fields["pg_detail"] = pg.Detail
		fields["pg_message"] = pg.Message
	}
	return fields
}
