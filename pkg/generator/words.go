package generator

// Words is the passphrase dictionary. Entries may repeat; draws are uniform over positions.
var Words = []string{
	"apple", "banana", "orange", "grape", "lemon", "melon", "cherry",
	"happy", "sunny", "funny", "silly", "crazy", "lucky", "shiny",
	"blue", "green", "red", "yellow", "purple", "orange", "teal",
	"river", "ocean", "mountain", "forest", "desert", "island", "valley",
}
