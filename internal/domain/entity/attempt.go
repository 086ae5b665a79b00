package entity

import "time"

// SubmissionAttempt registro de auditoría por llamada de transporte.
// No participa en los invariantes del documento; sirve para diagnóstico.
type SubmissionAttempt struct {
	ID            string
	DocumentID    string
	TransportMode string
	Operation     string // send | poll
	Outcome       string // accepted | rejected | pending | transport_error
	FaultCode     string
	Detail        string
	AttemptedAt   time.Time
}
