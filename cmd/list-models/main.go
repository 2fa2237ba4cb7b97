package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/ai"
	"github.com/GustavoLR548/news-relay-bot/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	rewriter, err := ai.NewGeminiRewriter(ai.GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	})
	if err != nil {
		log.Fatalf("GEMINI_API_KEY is required: %v", err)
	}

	fmt.Println("🔍 Listing available Gemini models...")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := rewriter.ListAvailableModels(ctx)
	if err != nil {
		log.Fatalf("Error listing models: %v", err)
	}

	if len(models) == 0 {
		fmt.Println("❌ No models found")
		return
	}

	fmt.Printf("✅ Found %d available model(s):\n", len(models))
	for i, model := range models {
		fmt.Printf("%d. %s\n", i+1, model)
	}

	fmt.Printf("\n📝 Set GEMINI_MODEL to one of the names above (default: %s)\n", ai.DefaultGeminiModel)
}
