package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"

	"blog_sync/internal/domain"
)

// transientClasses are SQLSTATE classes worth retrying: connection
// exceptions, transaction rollbacks (serialization failure, deadlock),
// insufficient resources and operator intervention.
var transientClasses = map[pq.ErrorClass]bool{
	"08": true,
	"40": true,
	"53": true,
	"57": true,
}

// classify marks retryable database errors with domain.ErrTransient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return err
}

func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientClasses[pqErr.Code.Class()]
	}
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
