package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"nutrition-bot/internal/api"
	"nutrition-bot/internal/app"
	"nutrition-bot/internal/config"
	"nutrition-bot/internal/norms"
	"nutrition-bot/internal/recognition"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch os.Args[1] {
	case "analyze":
		analyzeCmd := flag.NewFlagSet("analyze", flag.ExitOnError)
		userID := analyzeCmd.Int64("user", 1, "User ID the analysis is logged for")
		analyzeCmd.Parse(os.Args[2:])
		if analyzeCmd.NArg() != 1 {
			log.Fatal("Usage: nutrition-bot analyze [-user N] <image>")
		}

		services := mustBuild(ctx, cfg)
		defer services.Close()

		analysis, err := services.App.AnalyzeImage(ctx, recognition.Submission{
			UserID: *userID,
			Image:  recognition.Image{Path: analyzeCmd.Arg(0)},
		})
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		printJSON(map[string]any{
			"kind":     analysis.Result.Kind,
			"found":    analysis.Result.Found(),
			"record":   analysis.Result.Record,
			"insights": analysis.Insights,
		})
	case "lookup":
		lookupCmd := flag.NewFlagSet("lookup", flag.ExitOnError)
		code := lookupCmd.String("barcode", "", "Look up a product barcode instead of a food name")
		lookupCmd.Parse(os.Args[2:])

		services := mustBuild(ctx, cfg)
		defer services.Close()

		if *code != "" {
			product, err := services.Products.LookupProduct(ctx, *code)
			if err != nil {
				log.Fatalf("Barcode lookup failed: %v", err)
			}
			printJSON(product)
			return
		}

		name := strings.Join(lookupCmd.Args(), " ")
		match := services.Matcher.Match(name)
		fmt.Printf("Match: %s on %q\n", match.Tier, match.Key)
		printJSON(services.Matcher.Lookup(name))
	case "norms":
		normsCmd := flag.NewFlagSet("norms", flag.ExitOnError)
		gender := normsCmd.String("gender", "", "male or female")
		age := normsCmd.String("age", "", "Age in years")
		weight := normsCmd.String("weight", "", "Weight in kg")
		height := normsCmd.String("height", "", "Height in cm")
		activity := normsCmd.String("activity", "1.2", "Activity factor")
		goal := normsCmd.String("goal", string(norms.Maintenance), "weight_loss, maintenance or weight_gain")
		normsCmd.Parse(os.Args[2:])

		p, err := parseProfile(*gender, *age, *weight, *height, *activity, *goal)
		if err != nil {
			log.Fatalf("Invalid profile: %v", err)
		}
		d, err := norms.Compute(p)
		if err != nil {
			log.Fatalf("Failed to compute norms: %v", err)
		}
		fmt.Printf("BMR: %.1f kcal\n", norms.BMR(p))
		printJSON(d)
	case "token":
		tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
		userID := tokenCmd.Int64("user", 0, "User ID the token is issued for")
		ttl := tokenCmd.Duration("ttl", 30*24*time.Hour, "Token lifetime")
		tokenCmd.Parse(os.Args[2:])

		if *userID <= 0 {
			log.Fatal("A positive -user is required")
		}
		token, err := api.IssueToken([]byte(cfg.APIJWTSecret), *userID, *ttl, time.Now())
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		services := mustBuild(ctx, cfg)
		defer services.Close()

		affected, err := services.App.CleanupMetrics(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func mustBuild(ctx context.Context, cfg *config.Config) *app.Services {
	services, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	return services
}

func parseProfile(gender, age, weight, height, activity, goal string) (norms.Profile, error) {
	var (
		p   norms.Profile
		err error
	)
	if p.Gender, err = norms.ParseGender(gender); err != nil {
		return p, err
	}
	if p.Age, err = norms.ParseAge(age); err != nil {
		return p, err
	}
	if p.WeightKg, err = norms.ParseWeight(weight); err != nil {
		return p, err
	}
	if p.HeightCm, err = norms.ParseHeight(height); err != nil {
		return p, err
	}
	if p.ActivityFactor, err = norms.ParseActivityFactor(activity); err != nil {
		return p, err
	}
	if p.Goal, err = norms.ParseGoal(goal); err != nil {
		return p, err
	}
	return p, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func printUsage() {
	fmt.Println("Usage: nutrition-bot <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze            Run the recognition pipeline on an image file")
	fmt.Println("  lookup             Resolve a food name, or a product with -barcode")
	fmt.Println("  norms              Compute daily targets from body parameters")
	fmt.Println("  token              Issue an API token for a user")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
