package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"gymgate.dev/internal/audit"
	"gymgate.dev/internal/ids"
)

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, e *audit.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	reqData, err := json.Marshal(e.RequestData)
	if err != nil {
		return err
	}
	respData, err := json.Marshal(e.ResponseData)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into audit_logs(
			id, user_id, user_email, action, resource_type, resource_id,
			branch_id, ip_address, user_agent, occurred_at, success,
			status_code, request_data, response_data)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.UserID, e.UserEmail, e.Action, e.ResourceType, nullable(e.ResourceID),
		nullable(e.BranchID), nullable(e.IP), nullable(e.UserAgent), e.OccurredAt, e.Success,
		e.StatusCode, reqData, respData,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
