// gen_token emite un JWT de servicio para probar la API sin un proveedor
// de identidad. Lee JWT_SECRET, JWT_ISSUER y JWT_EXPIRATION del entorno
// (o .env) igual que el servidor, así el token generado valida contra él.
//
// Uso: go run ./cmd/gen_token -caller <id> -issuer <issuer_id>
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/petflowpe/facturacion/pkg/config"
	"github.com/petflowpe/facturacion/pkg/jwt"
)

func main() {
	callerID := flag.String("caller", "", "identificador del sistema que consume la API")
	issuerID := flag.String("issuer", "", "ID del emisor fiscal por el que se autoriza a emitir")
	flag.Parse()

	if *callerID == "" || *issuerID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}

	token, err := jwt.Generate(cfg.JWT.Secret, *callerID, *issuerID, cfg.JWT.Issuer, cfg.JWT.Expiration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generar token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
