// privilegectl publishes privilege.updated events by hand.  It exists for
// operations work: re-warming a user's privilege bundle after a support
// intervention, or invalidating one without waiting for the owning identity
// service to emit an event.
//
// Usage:
//
//	privilegectl -user <uuid> -tenant <uuid|None> -bundle bundle.json
//	privilegectl -user <uuid> -tenant <uuid|None> -invalidate
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/saas-access-core/internal/queue"
)

func main() {
	var (
		userID     = flag.String("user", "", "user UUID (required)")
		tenantID   = flag.String("tenant", "", `tenant UUID, or "None" for super-admin bundles (required)`)
		bundlePath = flag.String("bundle", "", "path to a JSON privilege bundle to warm")
		invalidate = flag.Bool("invalidate", false, "drop the cached bundle instead of warming it")
	)
	flag.Parse()

	_ = godotenv.Load()

	if *userID == "" || *tenantID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if (*bundlePath == "") == !*invalidate {
		log.Fatal("exactly one of -bundle or -invalidate must be given")
	}

	ev := queue.PrivilegeUpdatedEvent{UserID: *userID, TenantID: *tenantID}
	if *bundlePath != "" {
		raw, err := os.ReadFile(*bundlePath)
		if err != nil {
			log.Fatalf("read bundle: %v", err)
		}
		if !json.Valid(raw) {
			log.Fatalf("bundle %s is not valid JSON", *bundlePath)
		}
		ev.Bundle = json.RawMessage(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := queue.PublishPrivilegeUpdated(ctx, ev); err != nil {
		log.Fatalf("publish: %v", err)
	}
	if *invalidate {
		log.Printf("published invalidation for user=%s tenant=%s", *userID, *tenantID)
	} else {
		log.Printf("published bundle for user=%s tenant=%s", *userID, *tenantID)
	}
}
