package domain

import "errors"

// Errores de dominio (sin dependencias externas).
// La taxonomía del pipeline distingue errores permanentes (el documento queda
// RECHAZADO o el caller debe corregir la entrada) de transitorios (reintentables).
var (
	ErrNotFound  = errors.New("recurso no encontrado")
	ErrForbidden = errors.New("acceso denegado")

	// ErrInvalidDocumentData entrada inválida: el caller debe corregirla.
	// Detectado antes de asignar correlativo, no se consume numeración.
	ErrInvalidDocumentData = errors.New("datos del comprobante inválidos")

	// ErrAllocationConflict conflicto transitorio al asignar correlativo; se reintenta.
	ErrAllocationConflict = errors.New("conflicto al asignar correlativo")

	// ErrStoreUnavailable la base de datos no respondió; reintento acotado y se propaga.
	ErrStoreUnavailable = errors.New("almacenamiento no disponible")

	// ErrEncodingFailed el documento canónico no pudo firmarse/codificarse.
	// Permanente: el documento termina RECHAZADO con motivo EncodingFailed.
	ErrEncodingFailed = errors.New("codificación o firma del comprobante fallida")

	// ErrTransport fallo de red contra el WS SUNAT (timeout, conexión).
	// Transitorio: se reintenta con backoff hasta agotar presupuesto.
	ErrTransport = errors.New("error de transporte con SUNAT")

	// ErrAuthorityRejected SUNAT rechazó el comprobante. Permanente, nunca se reintenta.
	ErrAuthorityRejected = errors.New("comprobante rechazado por SUNAT")

	// ErrDuplicate el número de comprobante ya existe (violación de unicidad).
	ErrDuplicate = errors.New("comprobante duplicado")
)
