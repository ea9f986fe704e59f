package game

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"trivia/domain"
	"trivia/logger"

	"github.com/go-playground/validator/v10"
)

var defaultQuestions = []domain.Question{
	{Id: 1, Text: "What is the capital of France?", Options: []string{"London", "Berlin", "Paris", "Madrid"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Geography"},
	{Id: 2, Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, CorrectAnswer: 1, TimeLimit: 15, Category: "Science"},
	{Id: 3, Text: "Who painted the Mona Lisa?", Options: []string{"Vincent van Gogh", "Pablo Picasso", "Leonardo da Vinci", "Michelangelo"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Art"},
	{Id: 4, Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean", "Pacific Ocean"}, CorrectAnswer: 3, TimeLimit: 15, Category: "Geography"},
	{Id: 5, Text: "In what year did World War II end?", Options: []string{"1943", "1944", "1945", "1946"}, CorrectAnswer: 2, TimeLimit: 15, Category: "History"},
	{Id: 6, Text: "What is the smallest prime number?", Options: []string{"0", "1", "2", "3"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Math"},
	{Id: 7, Text: "Which element has the chemical symbol 'O'?", Options: []string{"Gold", "Oxygen", "Osmium", "Oganesson"}, CorrectAnswer: 1, TimeLimit: 15, Category: "Science"},
	{Id: 8, Text: "Who wrote 'Romeo and Juliet'?", Options: []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, CorrectAnswer: 1, TimeLimit: 15, Category: "Literature"},
	{Id: 9, Text: "What is the speed of light in vacuum?", Options: []string{"300,000 km/s", "150,000 km/s", "450,000 km/s", "600,000 km/s"}, CorrectAnswer: 0, TimeLimit: 15, Category: "Science"},
	{Id: 10, Text: "Which country is home to the kangaroo?", Options: []string{"New Zealand", "South Africa", "Australia", "Brazil"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Geography"},
	{Id: 11, Text: "How many continents are there on Earth?", Options: []string{"5", "6", "7", "8"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Geography"},
	{Id: 12, Text: "What is the hardest natural substance?", Options: []string{"Gold", "Iron", "Diamond", "Quartz"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Science"},
	{Id: 13, Text: "Which instrument has 88 keys?", Options: []string{"Piano", "Organ", "Harp", "Accordion"}, CorrectAnswer: 0, TimeLimit: 15, Category: "Music"},
	{Id: 14, Text: "What is 12 multiplied by 12?", Options: []string{"124", "144", "132", "156"}, CorrectAnswer: 1, TimeLimit: 15, Category: "Math"},
	{Id: 15, Text: "Who developed the theory of relativity?", Options: []string{"Isaac Newton", "Niels Bohr", "Albert Einstein", "Galileo Galilei"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Science"},
	{Id: 16, Text: "Which is the longest river in the world?", Options: []string{"Amazon", "Nile", "Yangtze", "Mississippi"}, CorrectAnswer: 1, TimeLimit: 15, Category: "Geography"},
	{Id: 17, Text: "In which year did humans first land on the Moon?", Options: []string{"1965", "1969", "1972", "1959"}, CorrectAnswer: 1, TimeLimit: 15, Category: "History"},
	{Id: 18, Text: "What gas do plants absorb from the atmosphere?", Options: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Science"},
	{Id: 19, Text: "Who wrote 'Pride and Prejudice'?", Options: []string{"Jane Austen", "Emily Bronte", "Mary Shelley", "George Eliot"}, CorrectAnswer: 0, TimeLimit: 15, Category: "Literature"},
	{Id: 20, Text: "What is the square root of 81?", Options: []string{"7", "8", "9", "10"}, CorrectAnswer: 2, TimeLimit: 15, Category: "Math"},
}

// QuestionBank is a fixed list of questions. Pick draws without replacement.
type QuestionBank struct {
	questions []domain.Question
}

func NewQuestionBank(questions []domain.Question) *QuestionBank {
	return &QuestionBank{questions: slices.Clone(questions)}
}

func DefaultQuestionBank() *QuestionBank {
	return NewQuestionBank(defaultQuestions)
}

func (b *QuestionBank) Size() int {
	return len(b.questions)
}

func (b *QuestionBank) Pick(count int) []domain.Question {
	shuffled := slices.Clone(b.questions)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if count < len(shuffled) {
		shuffled = shuffled[:count]
	}
	return shuffled
}

type questionFileEntry struct {
	Id            int      `json:"id" validate:"min=1"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"len=4,dive,required"`
	CorrectAnswer int      `json:"correctAnswer" validate:"min=0,max=3"`
	TimeLimit     int      `json:"timeLimit" validate:"min=1,max=300"`
	Category      string   `json:"category"`
}

// LoadQuestionBank reads a JSON array of questions from path.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open question file %s: %w", path, err)
	}

	var entries []questionFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("could not parse question file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("question file %s is empty", path)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	seen := make(map[int]bool, len(entries))
	questions := make([]domain.Question, 0, len(entries))
	for i, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("question #%d in %s: %w", i, path, err)
		}
		if seen[e.Id] {
			return nil, fmt.Errorf("question #%d in %s: duplicate id %d", i, path, e.Id)
		}
		seen[e.Id] = true
		questions = append(questions, domain.Question{
			Id:            e.Id,
			Text:          e.Text,
			Options:       e.Options,
			CorrectAnswer: e.CorrectAnswer,
			TimeLimit:     e.TimeLimit,
			Category:      e.Category,
		})
	}

	logger.Infof("Questions count: %v", len(questions))
	return NewQuestionBank(questions), nil
}
