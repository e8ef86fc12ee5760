package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"rag-chatbot-ui/internal/entity"
	"rag-chatbot-ui/internal/model"
	"rag-chatbot-ui/internal/repository/contract"
	"rag-chatbot-ui/internal/repository/implementation"
	redisRepo "rag-chatbot-ui/internal/repository/redis"
	"rag-chatbot-ui/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEnv() {
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}
}

// exerciseStore runs the same round trip against any session store.
func exerciseStore(t *testing.T, repo contract.SessionRepository) {
	ctx := context.Background()
	id := "it-" + uuid.NewString()

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got, "missing session must read as nil")

	s := entity.NewSession(id, "t-1", []string{"t-0"}, time.Now().UTC())
	s.Append(entity.RoleUser, "hello")
	s.Append(entity.RoleAssistant, "hi there")
	s.RecordDoc("t-1", "report.pdf", entity.IngestionSummary{Filename: "report.pdf", Chunks: 12, Documents: 3})
	require.NoError(t, repo.Save(ctx, s))
	t.Cleanup(func() { _ = repo.Delete(context.Background(), id) })

	got, err = repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t-1", got.ThreadId)
	assert.Equal(t, []string{"t-0", "t-1"}, got.ChatThreads)
	assert.Equal(t, s.History, got.History)
	doc, ok := got.LatestDoc("t-1")
	assert.True(t, ok)
	assert.Equal(t, 12, doc.Chunks)

	// Save again to exercise the update path.
	got.SwitchThread("t-2")
	require.NoError(t, repo.Save(ctx, got))
	again, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "t-2", again.ThreadId)
	assert.NotNil(t, again.ThreadDocs("t-2"))

	require.NoError(t, repo.Delete(ctx, id))
	gone, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRedisSessionStore(t *testing.T) {
	loadEnv()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping integration test: REDIS_URL not set")
	}

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())

	exerciseStore(t, redisRepo.NewSessionRepository(rdb, time.Minute))
}

func TestPostgresSessionStore(t *testing.T) {
	loadEnv()

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn, false, &model.UISession{})
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	repo := implementation.NewSessionRepository(gormDB, time.Minute)
	exerciseStore(t, repo)

	t.Run("Expired sessions are purged", func(t *testing.T) {
		ctx := context.Background()
		expiring := implementation.NewSessionRepository(gormDB, -time.Minute)
		id := "it-expired-" + uuid.NewString()
		require.NoError(t, expiring.Save(ctx, entity.NewSession(id, "t-1", nil, time.Now())))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)

		n, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
	})
}
