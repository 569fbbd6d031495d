package main

// Provider blank imports. Each import activates a self-registering notifier.

import (
	_ "github.com/Strob0t/TaskDesk/internal/adapter/slack"
)
