package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/imoredv/time-tracker-bot/internal/domain"
	"github.com/imoredv/time-tracker-bot/internal/stats"
)

func TestStatsMessage(t *testing.T) {
	sums := map[domain.ActivityType]int64{
		domain.ActivityWork: 3600,
		domain.ActivityRest: 60,
	}
	open := &domain.Session{ActivityType: domain.ActivityWork, StartTime: time.Now()}

	msg := statsMessage("📅 Today", sums, open, nil)

	if !strings.Contains(msg, "💼 Work: 1 h 00 min 00 sec ⏱") {
		t.Fatalf("current activity not marked:\n%s", msg)
	}
	if !strings.Contains(msg, "🏖 Rest: 1 min 00 sec") {
		t.Fatalf("rest row missing:\n%s", msg)
	}
	if !strings.Contains(msg, "📈 Total: 1 h 01 min 00 sec") {
		t.Fatalf("total missing:\n%s", msg)
	}
	// Sorted descending: work before rest.
	if strings.Index(msg, "Work") > strings.Index(msg, "Rest") {
		t.Fatalf("rows not sorted by duration:\n%s", msg)
	}
}

func TestStatsMessageEmpty(t *testing.T) {
	msg := statsMessage("📅 Today", nil, nil, nil)
	if !strings.Contains(msg, "No data yet") {
		t.Fatalf("empty report = %q", msg)
	}
}

func TestStatsMessageCustomNames(t *testing.T) {
	sums := map[domain.ActivityType]int64{domain.ActivityWork: 60}
	customs := map[domain.ActivityType]domain.CustomActivity{
		domain.ActivityWork: {ActivityType: domain.ActivityWork, Name: "Grind", Emoji: "🔥"},
	}
	msg := statsMessage("📅 Today", sums, nil, customs)
	if !strings.Contains(msg, "🔥 Grind: 1 min 00 sec") {
		t.Fatalf("custom name not used:\n%s", msg)
	}
}

func TestBarGraphProportions(t *testing.T) {
	sums := map[domain.ActivityType]int64{
		domain.ActivityWork: 1200,
		domain.ActivityRest: 600,
	}
	graph := barGraph(sums)
	lines := strings.Split(strings.TrimRight(graph, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d:\n%s", len(lines), graph)
	}
	if strings.Count(lines[0], "█") != barWidth {
		t.Fatalf("top bar = %q, want %d cells", lines[0], barWidth)
	}
	if strings.Count(lines[1], "█") != barWidth/2 {
		t.Fatalf("half bar = %q, want %d cells", lines[1], barWidth/2)
	}
}

func TestBarGraphEmpty(t *testing.T) {
	if got := barGraph(nil); got != "" {
		t.Fatalf("empty graph = %q", got)
	}
}

func TestTimelineGraph(t *testing.T) {
	var buckets [stats.BucketsPerDay]stats.Bucket
	buckets[18] = stats.Bucket{Type: domain.ActivityWork, Seconds: 1800}
	buckets[44] = stats.Bucket{Type: domain.ActivityRest, Seconds: 900}

	graph := timelineGraph(buckets)
	lines := strings.Split(graph, "\n")

	morning := []rune(strings.TrimPrefix(lines[0], "00–12  "))
	evening := []rune(strings.TrimPrefix(lines[1], "12–24  "))
	if len(morning) != 24 || len(evening) != 24 {
		t.Fatalf("row lengths = %d/%d, want 24/24", len(morning), len(evening))
	}
	if morning[18] != 'W' {
		t.Fatalf("slot 18 = %q, want W", morning[18])
	}
	if evening[44-24] != 'R' {
		t.Fatalf("slot 44 = %q, want R", evening[44-24])
	}
	if morning[0] != '·' {
		t.Fatalf("idle slot = %q, want ·", morning[0])
	}
	if !strings.Contains(graph, "W=Work") {
		t.Fatalf("legend missing:\n%s", graph)
	}
}

func TestFormatInterval(t *testing.T) {
	cases := []struct {
		sec  int
		want string
	}{
		{0, "off"},
		{5, "5 sec"},
		{900, "15 min"},
		{7200, "2 h"},
	}
	for _, c := range cases {
		if got := formatInterval(c.sec); got != c.want {
			t.Fatalf("formatInterval(%d) = %q, want %q", c.sec, got, c.want)
		}
	}
}

func TestLabelRoundTrip(t *testing.T) {
	for _, a := range domain.AllActivities() {
		got, ok := labelToActivity[activityLabel(a)]
		if !ok || got != a {
			t.Fatalf("label %q does not round-trip to %q", activityLabel(a), a)
		}
	}
}

func TestSplitRename(t *testing.T) {
	cases := []struct {
		in        string
		wantEmoji string
		wantName  string
	}{
		{"🧠 Deep work", "🧠", "Deep work"},
		{"Deep work", "", "Deep work"},
		{"Gym", "", "Gym"},
		{"🔥 Grind mode on", "🔥", "Grind mode on"},
		{"  ", "", ""},
		{"🧠", "", "🧠"},
	}
	for _, c := range cases {
		emoji, name := splitRename(c.in)
		if emoji != c.wantEmoji || name != c.wantName {
			t.Fatalf("splitRename(%q) = (%q, %q), want (%q, %q)",
				c.in, emoji, name, c.wantEmoji, c.wantName)
		}
	}
}
