// Package queue runs the engine's background work: relationship analysis,
// fact extraction and importance recalculation.
//
// Tasks carry a priority and drain highest-first, with enqueue order
// breaking ties. A Scheduler processes a bounded batch on a fixed tick,
// each task bounded by a timeout, and a circuit breaker pauses processing
// after consecutive failures (a success resets the count) until a cool-down
// probe succeeds. Failed tasks
// retry with exponential backoff and land on a dead-letter list once their
// attempts are spent. The queue itself is depth-capped: when full, a
// high-priority arrival evicts the lowest-priority pending task.
//
//	s := queue.NewScheduler(queue.DefaultSchedulerConfig())
//	s.RegisterHandler(queue.KindRelationshipAnalysis, handler)
//	s.Start(ctx)
//	defer s.Stop()
//	s.Enqueue(queue.NewTask(queue.KindRelationshipAnalysis, ownerID, memoryID, queue.PriorityMedium))
package queue
