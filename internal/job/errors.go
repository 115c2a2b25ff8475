package job

import "errors"

var (
	ErrStartedBeforeCreated  = errors.New("job: started_at before created_at")
	ErrCompletedWithoutStart = errors.New("job: completed_at set without started_at")
	ErrCompletedBeforeStarted = errors.New("job: completed_at before started_at")
)
