// seed_sunat genera scripts SQL para poblar datos iniciales: la tabla
// paramétrica de ubigeos INEI y el emisor titular con sus series.
//
// Uso: go run ./cmd/seed_sunat [ruta/ubigeos.csv]
// Por defecto busca ubigeos.csv en el directorio actual. El CSV oficial INEI
// viene en ISO-8859-1 con columnas: codigo;departamento;provincia;distrito.
// Escribe: internal/infrastructure/postgres/migrations/002_seed.sql
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type ubigeo struct {
	code, department, province, district string
}

func main() {
	csvPath := "ubigeos.csv"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}
	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	reader := csv.NewReader(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}

	var locations []ubigeo
	for _, rec := range records {
		if len(rec) < 4 {
			continue
		}
		code := strings.TrimSpace(rec[0])
		// Descartar cabecera y filas agregadas (departamento/provincia sin distrito).
		if len(code) != 6 || !isDigits(code) {
			continue
		}
		locations = append(locations, ubigeo{
			code:       code,
			department: strings.TrimSpace(rec[1]),
			province:   strings.TrimSpace(rec[2]),
			district:   strings.TrimSpace(rec[3]),
		})
	}
	if len(locations) == 0 {
		fmt.Fprintln(os.Stderr, "El CSV no contiene ubigeos válidos")
		os.Exit(1)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Ubigeos INEI (código de 6 dígitos)\n")
	out.WriteString("-- Generado desde el CSV oficial por cmd/seed_sunat\n\n")
	out.WriteString("INSERT INTO ubigeo_locations (code, department, province, district) VALUES\n")
	for i, loc := range locations {
		sep := ","
		if i == len(locations)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  ('%s', '%s', '%s', '%s')%s\n",
			loc.code, escapeSQL(loc.department), escapeSQL(loc.province), escapeSQL(loc.district), sep)
	}
	out.WriteString("ON CONFLICT (code) DO UPDATE SET\n")
	out.WriteString("  department = EXCLUDED.department,\n")
	out.WriteString("  province   = EXCLUDED.province,\n")
	out.WriteString("  district   = EXCLUDED.district;\n\n")

	// Emisor de ejemplo para el ambiente beta (MODDATOS). Reemplazar RUC y
	// razón social antes de usar en producción.
	out.WriteString("-- Emisor inicial (ambiente beta)\n")
	out.WriteString("INSERT INTO issuers (id, ruc, name, trade_name, address, ubigeo, district, province)\n")
	out.WriteString("VALUES (gen_random_uuid(), '20000000001', 'EMPRESA DE PRUEBAS S.A.C.', NULL, 'Av. Ejemplo 123', '150101', 'Lima', 'Lima')\n")
	out.WriteString("ON CONFLICT (ruc) DO NOTHING;\n")

	fmt.Printf("Generado %s: %d ubigeos\n", outPath, len(locations))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
