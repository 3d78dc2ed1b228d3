// enc cifra un secreto (p.ej. la App Password SMTP) con SECRETBOX_MASTER_KEY
// para guardarlo como smtp.password_enc.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/learnhabit/internal/security/secretbox"
)

func main() {
	_ = godotenv.Load(".env")
	key := os.Getenv("SECRETBOX_MASTER_KEY")
	if key == "" {
		log.Fatal("SECRETBOX_MASTER_KEY not set")
	}

	var plain string
	if len(os.Args) > 1 {
		plain = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read stdin: %v", err)
		}
		plain = strings.TrimRight(line, "\r\n")
	}
	if plain == "" {
		log.Fatal("nothing to encrypt (arg or stdin)")
	}

	box, err := secretbox.New(key)
	if err != nil {
		log.Fatalf("secretbox: %v", err)
	}
	enc, err := box.Encrypt(plain)
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	fmt.Println(enc)
}
