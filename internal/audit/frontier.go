package audit

// frontier is the crawl state of one audit: a FIFO queue of URLs waiting to
// be fetched plus the keys already queued or visited. Not safe for
// concurrent use; an audit is strictly sequential.
type frontier struct {
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
}

func newFrontier(seed string) *frontier {
	f := &frontier{
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
	f.push(seed)
	return f
}

// push enqueues rawURL unless its key was already visited or queued.
func (f *frontier) push(rawURL string) bool {
	key := keyOf(rawURL)
	if _, ok := f.visited[key]; ok {
		return false
	}
	if _, ok := f.queued[key]; ok {
		return false
	}
	f.queued[key] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

func (f *frontier) pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	next := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.queued, keyOf(next))
	return next, true
}

// visit marks rawURL visited and reports whether it was new.
func (f *frontier) visit(rawURL string) bool {
	key := keyOf(rawURL)
	if _, ok := f.visited[key]; ok {
		return false
	}
	f.visited[key] = struct{}{}
	return true
}

func (f *frontier) pending() int {
	return len(f.queue)
}
