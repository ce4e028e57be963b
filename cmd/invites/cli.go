package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"wedding-invites/internal/handler"
	"wedding-invites/internal/invites"
	"wedding-invites/internal/models"
)

// startCLI runs the interactive admin menu on stdin until exit or EOF.
func startCLI(ctx context.Context, svc *invites.Service, delivery *handler.DeliveryHandler, stop context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Println("\nCommands:")
		fmt.Println("  1. Add guest")
		fmt.Println("  2. View all guests")
		fmt.Println("  3. View checked-in guests")
		fmt.Println("  4. Generate missing invitations")
		fmt.Println("  5. Send invitation")
		fmt.Println("  6. Exit")
		fmt.Print("\nEnter command (1-6): ")

		if !scanner.Scan() {
			return
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			addGuest(ctx, scanner, svc)
		case "2":
			printInvites(ctx, "All guests", svc.List)
		case "3":
			printInvites(ctx, "Checked-in guests", svc.ListCheckedIn)
		case "4":
			backfill(ctx, svc)
		case "5":
			sendInvitation(ctx, scanner, delivery)
		case "6":
			fmt.Println("Exiting...")
			stop()
			return
		default:
			fmt.Println("Invalid command. Please try again.")
		}
	}
}

func prompt(scanner *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}

func addGuest(ctx context.Context, scanner *bufio.Scanner, svc *invites.Service) {
	var in invites.AddInput
	var ok bool
	if in.Name, ok = prompt(scanner, "Enter guest name: "); !ok {
		return
	}
	if in.CountryCode, ok = prompt(scanner, "Enter country code (e.g. 33): "); !ok {
		return
	}
	if in.Phone, ok = prompt(scanner, "Enter phone number: "); !ok {
		return
	}
	if in.TableNumber, ok = prompt(scanner, "Enter table number: "); !ok {
		return
	}

	invite, err := svc.Add(ctx, in)
	if err != nil {
		fmt.Printf("❌ Error adding guest: %v\n", err)
		return
	}
	fmt.Printf("✅ Added %s (%s)\n   Invitation: %s\n", invite.Name, invite.UniqueID, invite.InvitationImagePath)
}

func printInvites(ctx context.Context, title string, list func(context.Context) ([]models.Invite, error)) {
	all, err := list(ctx)
	if err != nil {
		fmt.Printf("❌ Error reading guests: %v\n", err)
		return
	}
	if len(all) == 0 {
		fmt.Println("\nNo guests found.")
		return
	}

	fmt.Printf("\n📋 %s (%d total):\n", title, len(all))
	fmt.Println(strings.Repeat("-", 60))
	for _, inv := range all {
		fmt.Printf("Name: %s\n", inv.Name)
		fmt.Printf("Phone: %s\n", displayPhone(inv.CountryCode, inv.Phone))
		fmt.Printf("Table: %s\n", inv.TableNumber)
		fmt.Printf("Code: %s\n", inv.UniqueID)
		if inv.CheckedIn {
			fmt.Printf("Checked in: %s\n", inv.CheckInTime)
		}
		fmt.Println(strings.Repeat("-", 60))
	}
}

// displayPhone prints the number with a single leading "+" on the country code.
func displayPhone(countryCode, phone string) string {
	cc := strings.TrimLeft(strings.TrimSpace(countryCode), "+")
	if cc == "" {
		return phone
	}
	return "+" + cc + " " + phone
}

func backfill(ctx context.Context, svc *invites.Service) {
	report, err := svc.Backfill(ctx)
	fmt.Printf("\nScanned %d rows, generated %d, skipped %d\n", report.Scanned, report.Generated, report.Skipped)
	if err != nil {
		fmt.Printf("❌ Stopped on error: %v\n", err)
	}
}

func sendInvitation(ctx context.Context, scanner *bufio.Scanner, delivery *handler.DeliveryHandler) {
	if delivery == nil {
		fmt.Println("WhatsApp delivery is disabled (set WHATSAPP_ENABLED=true).")
		return
	}
	code, ok := prompt(scanner, "Enter invite code: ")
	if !ok {
		return
	}

	invite, err := delivery.SendInvitation(ctx, code)
	switch {
	case errors.Is(err, invites.ErrNotFound):
		fmt.Printf("❌ No invite with code %s\n", code)
	case err != nil:
		fmt.Printf("❌ Error sending invitation: %v\n", err)
	default:
		fmt.Printf("✅ Invitation sent to %s\n", invite.Name)
	}
}
