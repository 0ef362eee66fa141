package main

type sessionKey string

const playerIDSessionKey = sessionKey("playerID")

// playerIDLength is the number of random letters in a player id.
const playerIDLength uint = 20
