package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(clientAddr string) string {
	return fmt.Sprintf("ratelimit:%s", clientAddr)
}
