package sunat

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Conversión de montos a letras para la leyenda 1000 del catálogo 52.
// Formato SUNAT: "DOSCIENTOS TREINTA Y SEIS CON 00/100 SOLES".
// Se escriben sin tildes, como es uso extendido en los sistemas de emisión.

var letrasUnidades = [21]string{
	"CERO", "UNO", "DOS", "TRES", "CUATRO", "CINCO", "SEIS", "SIETE", "OCHO",
	"NUEVE", "DIEZ", "ONCE", "DOCE", "TRECE", "CATORCE", "QUINCE", "DIECISEIS",
	"DIECISIETE", "DIECIOCHO", "DIECINUEVE", "VEINTE",
}

var letrasVeintis = [10]string{
	"", "VEINTIUNO", "VEINTIDOS", "VEINTITRES", "VEINTICUATRO", "VEINTICINCO",
	"VEINTISEIS", "VEINTISIETE", "VEINTIOCHO", "VEINTINUEVE",
}

var letrasDecenas = [10]string{
	"", "", "", "TREINTA", "CUARENTA", "CINCUENTA", "SESENTA", "SETENTA",
	"OCHENTA", "NOVENTA",
}

var letrasCentenas = [10]string{
	"", "CIENTO", "DOSCIENTOS", "TRESCIENTOS", "CUATROCIENTOS", "QUINIENTOS",
	"SEISCIENTOS", "SETECIENTOS", "OCHOCIENTOS", "NOVECIENTOS",
}

// nombres de moneda para la leyenda (catálogo 02).
var currencyNames = map[string]string{
	CurrencyPEN: "SOLES",
	CurrencyUSD: "DOLARES AMERICANOS",
}

// AmountInWords convierte el monto a la leyenda en letras.
// Soporta montos hasta 999 999 999 999.99; montos negativos se anteponen con "MENOS".
func AmountInWords(amount decimal.Decimal, currency string) string {
	name, ok := currencyNames[currency]
	if !ok {
		name = currency
	}
	negative := amount.IsNegative()
	abs := amount.Abs().Round(2)
	intPart := abs.Truncate(0).IntPart()
	cents := abs.Sub(abs.Truncate(0)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	words := integerToWords(intPart)
	if negative {
		words = "MENOS " + words
	}
	return fmt.Sprintf("%s CON %02d/100 %s", words, cents, name)
}

func integerToWords(n int64) string {
	if n == 0 {
		return "CERO"
	}
	var parts []string
	if millones := n / 1_000_000; millones > 0 {
		if millones == 1 {
			parts = append(parts, "UN MILLON")
		} else {
			parts = append(parts, integerToWords(millones)+" MILLONES")
		}
		n %= 1_000_000
	}
	if miles := n / 1000; miles > 0 {
		if miles == 1 {
			parts = append(parts, "MIL")
		} else {
			parts = append(parts, apocope(hastaNovecientos(int(miles)))+" MIL")
		}
		n %= 1000
	}
	if n > 0 {
		parts = append(parts, hastaNovecientos(int(n)))
	}
	return strings.Join(parts, " ")
}

// hastaNovecientos convierte 1..999 a letras.
func hastaNovecientos(n int) string {
	if n >= 100 {
		if n == 100 {
			return "CIEN"
		}
		c := letrasCentenas[n/100]
		if rest := n % 100; rest > 0 {
			return c + " " + hastaNoventaYNueve(rest)
		}
		return c
	}
	return hastaNoventaYNueve(n)
}

// hastaNoventaYNueve convierte 1..99 a letras.
func hastaNoventaYNueve(n int) string {
	switch {
	case n <= 20:
		return letrasUnidades[n]
	case n < 30:
		return letrasVeintis[n-20]
	default:
		d := letrasDecenas[n/10]
		if rest := n % 10; rest > 0 {
			return d + " Y " + letrasUnidades[rest]
		}
		return d
	}
}

// apocope reduce "UNO"/"VEINTIUNO"/"… Y UNO" a su forma apocopada antes de "MIL".
func apocope(s string) string {
	if strings.HasSuffix(s, "UNO") {
		return strings.TrimSuffix(s, "O")
	}
	return s
}
