package feed

import "scrollfeed/models"

// Phase is the state of a feed's pagination
type Phase int

const (
	// Idle is a feed that has not been activated, or has been deactivated
	Idle Phase = iota
	// LoadingFirst is waiting for page 1
	LoadingFirst
	// Ready accepts scroll-triggered loads
	Ready
	// LoadingMore is waiting for the page after the cursor
	LoadingMore
	// LastPage means the source has nothing more. Event inserts still apply.
	LastPage
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case LoadingFirst:
		return "loading-first"
	case Ready:
		return "ready"
	case LoadingMore:
		return "loading-more"
	case LastPage:
		return "last-page"
	default:
		return "unknown"
	}
}

// ViewModel is everything a view needs to render the feed
type ViewModel struct {
	IsLoading     bool
	IsLoadingMore bool
	IsLastPage    bool
	Items         []models.Item
}

// Empty reports whether the view should show its "no items" message
func (vm ViewModel) Empty() bool {
	return !vm.IsLoading && len(vm.Items) == 0
}

func viewModel(phase Phase, items []models.Item) ViewModel {
	copied := make([]models.Item, len(items))
	copy(copied, items)
	return ViewModel{
		IsLoading:     phase == LoadingFirst,
		IsLoadingMore: phase == LoadingMore,
		IsLastPage:    phase == LastPage,
		Items:         copied,
	}
}
