package dispatch

// RunInfo is handed to observers before the first send.
type RunInfo struct {
	RunID    string
	Campaign string
	Total    int
	Batches  int
	Config   Config
}

// Observer receives progress callbacks from Run. Callbacks happen on the
// dispatch goroutine, in order, and must not block for long.
type Observer interface {
	RunStarted(info RunInfo)
	BatchStarted(index, count, size int)
	ResultRecorded(res Result, done, total int)
	RunFinished(sum Summary)
}

type observers []Observer

func (obs observers) runStarted(info RunInfo) {
	for _, o := range obs {
		o.RunStarted(info)
	}
}

func (obs observers) batchStarted(index, count, size int) {
	for _, o := range obs {
		o.BatchStarted(index, count, size)
	}
}

func (obs observers) resultRecorded(res Result, done, total int) {
	for _, o := range obs {
		o.ResultRecorded(res, done, total)
	}
}

func (obs observers) runFinished(sum Summary) {
	for _, o := range obs {
		o.RunFinished(sum)
	}
}
