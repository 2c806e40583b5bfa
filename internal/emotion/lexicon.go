package emotion

// Word lists are matched by case-insensitive substring containment, so a
// stem such as "frustrat" covers every inflection.
var (
	positiveWords = []string{
		"love", "like", "great", "good", "happy", "awesome", "amazing", "wonderful",
		"thank", "glad", "excited", "fantastic", "nice", "enjoy", "beautiful", "proud",
	}
	negativeWords = []string{
		"hate", "sad", "angry", "terrible", "awful", "bad", "upset", "annoyed",
		"frustrat", "worried", "hurt", "lonely", "scared", "afraid", "disappoint", "miserable",
	}
	urgencyMarkers  = []string{"!", "urgent", "asap", "right now", "hurry", "immediately", "emergency"}
	lowArousalWords = []string{"tired", "sleepy", "bored", "exhausted", "meh"}
	calmingWords    = []string{"calm", "relax", "peaceful", "breathe", "chill"}
)
