package policy

import "time"

// activeException returns the Exception in p.Exceptions matching advisoryID
// if one exists and has not expired as of now, plus an audit record
// describing whatever was found (even an expired or absent match produces
// no exception but callers needing a full audit trail should still log the
// absence at the call site).
func activeException(p Policy, advisoryID string, now time.Time) (*Exception, *AuditRecord) {
	for _, e := range p.Exceptions {
		if e.ID != advisoryID {
			continue
		}
		expired := e.expired(now)
		record := AuditRecord{AdvisoryID: advisoryID, Expired: expired, Exception: e}
		if expired {
			return nil, &record
		}
		return &e, &record
	}
	return nil, nil
}
