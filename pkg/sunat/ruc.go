package sunat

import "fmt"

// pesos para el cálculo del dígito verificador del RUC (módulo 11, SUNAT).
// Se aplican a los 10 primeros dígitos del RUC, de izquierda a derecha.
var rucWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidateRUC valida que el RUC tenga 11 dígitos, un prefijo de tipo de
// contribuyente conocido (10, 15, 17 o 20) y dígito verificador módulo 11 correcto.
func ValidateRUC(ruc string) error {
	if len(ruc) != 11 {
		return fmt.Errorf("sunat: RUC debe tener 11 dígitos, se encontraron %d", len(ruc))
	}
	for _, r := range ruc {
		if r < '0' || r > '9' {
			return fmt.Errorf("sunat: RUC contiene caracteres no numéricos")
		}
	}
	switch ruc[:2] {
	case "10", "15", "17", "20":
	default:
		return fmt.Errorf("sunat: prefijo de RUC desconocido %q", ruc[:2])
	}
	expected, err := ComputeRUCCheckDigit(ruc)
	if err != nil {
		return err
	}
	if ruc[10] != expected {
		return fmt.Errorf("sunat: dígito verificador del RUC inválido: esperado %c, recibido %c", expected, ruc[10])
	}
	return nil
}

// ComputeRUCCheckDigit calcula el dígito verificador para los 10 primeros dígitos del RUC.
func ComputeRUCCheckDigit(ruc string) (byte, error) {
	if len(ruc) < 10 {
		return 0, fmt.Errorf("sunat: se requieren al menos 10 dígitos para calcular el dígito verificador, se encontraron %d", len(ruc))
	}
	var sum int
	for i := 0; i < 10; i++ {
		d := ruc[i]
		if d < '0' || d > '9' {
			return 0, fmt.Errorf("sunat: RUC contiene caracteres no numéricos")
		}
		sum += int(d-'0') * rucWeights[i]
	}
	check := 11 - sum%11
	switch check {
	case 10:
		return '0', nil
	case 11:
		return '1', nil
	default:
		return byte('0' + check), nil
	}
}
