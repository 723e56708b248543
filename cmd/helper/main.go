package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"gatecheck/internal/store"
	"gatecheck/internal/utils"
	"gatecheck/internal/utils/logger"
)

func main() {
	var log = logger.New("helper")
	log.Info("🔑 Starting credential helper CLI")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Enter 'p' to hash a password/pincode, 'h' to hash header-auth credentials, 't' to mint an access token, or 'q' to quit: ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		if choice == "q" {
			log.Info("👋 Exiting helper CLI")
			break
		}

		switch choice {
		case "p":
			fmt.Print("Enter the password or pincode: ")
			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(input)

			hash, err := bcrypt.GenerateFromPassword([]byte(input), bcrypt.DefaultCost)
			if err != nil {
				log.Error("❌ Hashing failed", err)
			} else {
				log.Success("✅ Credential hash: %s", string(hash))
			}
		case "h":
			fmt.Print("Enter the username: ")
			user, _ := reader.ReadString('\n')
			fmt.Print("Enter the password: ")
			pass, _ := reader.ReadString('\n')

			// Header auth hashes the "user:pass" pair as one credential.
			blob := strings.TrimSpace(user) + ":" + strings.TrimSpace(pass)
			hash, err := bcrypt.GenerateFromPassword([]byte(blob), bcrypt.DefaultCost)
			if err != nil {
				log.Error("❌ Hashing failed", err)
			} else {
				log.Success("✅ Header auth hash: %s", string(hash))
			}
		case "t":
			tokenID, err := utils.GenerateRandomString(12)
			if err != nil {
				log.Error("❌ Token ID generation failed", err)
				continue
			}
			secret, err := utils.GenerateRandomString(48)
			if err != nil {
				log.Error("❌ Token secret generation failed", err)
				continue
			}
			log.Success("✅ Token ID: %s", tokenID)
			log.Success("✅ Token secret (share once): %s", secret)
			log.Success("✅ Secret digest (store this): %s", store.HashToken(secret))
		default:
			log.Warn("⚠️ Invalid choice. Please enter 'p', 'h', 't', or 'q'.")
		}
	}
}
