package server

// RunningJob is a handle to a background task with an orderly shutdown
// path. RequestStop is safe to call once; AwaitStop blocks until the
// shutdown callback has finished.
type RunningJob struct {
	stop   chan struct{}
	closed chan struct{}
}

func (job *RunningJob) RequestStop() {
	close(job.stop)
}

func (job *RunningJob) AwaitStop() {
	<-job.closed
}

// StopAndWait requests shutdown and blocks until it completes.
func (job *RunningJob) StopAndWait() {
	job.RequestStop()
	job.AwaitStop()
}

// SpawnJob runs start in the background and invokes shutdown once the job
// is asked to stop. The shutdown callback runs on its own goroutine, so
// start may block indefinitely (an http listener, for instance).
func SpawnJob(start func(), shutdown func()) RunningJob {
	job := RunningJob{stop: make(chan struct{}), closed: make(chan struct{})}
	go func() {
		<-job.stop
		shutdown()
		close(job.closed)
	}()
	go start()
	return job
}

// CombineJobs ties several jobs to one handle. Stopping the combined job
// requests shutdown of all members first and then waits for each, so the
// members wind down concurrently.
func CombineJobs(jobs ...RunningJob) RunningJob {
	return SpawnJob(func() {}, func() {
		for _, job := range jobs {
			job.RequestStop()
		}
		for _, job := range jobs {
			job.AwaitStop()
		}
	})
}
