package main

// hashpass prints the bcrypt hash of a password for the ADMIN_PASS_HASH
// environment variable.  Usage: go run ./cmd/hashpass <password>

import (
    "fmt"
    "log"
    "os"

    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/edition-registry/internal/utils"
)

func main() {
    if len(os.Args) != 2 {
        log.Fatalf("usage: %s <password>", os.Args[0])
    }
    hash, err := utils.HashPassword(os.Args[1], bcrypt.DefaultCost)
    if err != nil {
        log.Fatalf("hash: %v", err)
    }
    fmt.Println(hash)
}
