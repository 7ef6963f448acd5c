package config

type WorkerKeyStruct struct {
	PersistScoresQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistScoresQueue: "persist_scores_queue",
}
